package pool

import (
	"github.com/getsentry/sentry-go"
	"github.com/pixelvault/gallery-repo/common/config"
	"github.com/sirupsen/logrus"
)

var ZipQueue *Queue

func Init() {
	var err error
	if ZipQueue, err = NewQueue(config.Get().Zips.NumWorkers, "zip-builds"); err != nil {
		sentry.CaptureException(err)
		logrus.Error("Error setting up zip build queue")
		logrus.Fatal(err)
	}
}

func AdjustSize() {
	ZipQueue.Tune(config.Get().Zips.NumWorkers)
}

func Drain() {
	ZipQueue.Release()
}

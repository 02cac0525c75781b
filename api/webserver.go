package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/pixelvault/gallery-repo/common/config"
	"github.com/sirupsen/logrus"
)

var srv *http.Server
var shutdown = &sync.WaitGroup{}
var reloading = false

// Init starts the web server. The returned wait group completes when the
// server has shut down for good; config reloads restart it without
// completing the group.
func Init() *sync.WaitGroup {
	address := net.JoinHostPort(config.Get().General.BindAddress, strconv.Itoa(config.Get().General.Port))

	// Sentry wraps the whole route tree so handler panics get captured
	// before our own panic handler converts them to 500s.
	wrapped := sentryhttp.New(sentryhttp.Options{}).Handle(buildRoutes())
	srv = &http.Server{Addr: address, Handler: wrapped}
	reloading = false

	go func() {
		//goland:noinspection HttpUrlsUsage
		logrus.WithField("address", address).Info("Listening at http://" + address)
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			sentry.CaptureException(err)
			logrus.Fatal(err)
		}
		srv = nil
		if !reloading {
			shutdown.Done()
		}
	}()

	return shutdown
}

func Reload() {
	reloading = true
	Stop()
	Init()
}

func Stop() {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Error("Error stopping web server: ", err)
	}
}

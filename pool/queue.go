package pool

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/panjf2000/ants/v2"
	"github.com/pixelvault/gallery-repo/common/logging"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Queue is the fire-and-forget worker pool build jobs run on. Callers never
// wait on a task; completion is observed through the order record.
type Queue struct {
	name string
	pool *ants.Pool
}

func NewQueue(workers int, name string) (*Queue, error) {
	p, err := ants.NewPool(workers, ants.WithOptions(ants.Options{
		ExpiryDuration: 1 * time.Minute, // idle worker lifespan
		Nonblocking:    false,
		PanicHandler: func(err interface{}) {
			logrus.Errorf("Panic in queue %s", name)
			logrus.Error(err)
			//goland:noinspection GoTypeAssertionOnErrors
			if e, ok := err.(error); ok {
				sentry.CaptureException(e)
			}
		},
		Logger: &logging.SendToDebugLogger{},
	}))
	if err != nil {
		return nil, err
	}
	return &Queue{name: name, pool: p}, nil
}

// Schedule submits the task and returns without waiting for it to run.
func (q *Queue) Schedule(task func()) error {
	if err := q.pool.Submit(task); err != nil {
		return err
	}
	metrics.TasksScheduled.With(prometheus.Labels{"queue": q.name}).Inc()
	return nil
}

// Tune resizes the pool. Used when the config is reloaded.
func (q *Queue) Tune(workers int) {
	q.pool.Tune(workers)
}

// Release stops the pool. Tasks that haven't started yet are dropped.
func (q *Queue) Release() {
	q.pool.Release()
}

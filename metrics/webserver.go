package metrics

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pixelvault/gallery-repo/common/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// The metrics listener runs on its own port so the scrape endpoint never
// shares a surface with order traffic.
var listener *http.Server

func Init() {
	if !config.Get().Metrics.Enabled {
		logrus.Info("Metrics disabled")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	address := net.JoinHostPort(config.Get().Metrics.BindAddress, strconv.Itoa(config.Get().Metrics.Port))
	listener = &http.Server{Addr: address, Handler: mux}
	go func() {
		logrus.WithField("address", address).Info("Metrics listening at http://" + address)
		if err := listener.ListenAndServe(); err != http.ErrServerClosed {
			logrus.Fatal(err)
		}
	}()
}

func Reload() {
	Stop()
	Init()
}

func Stop() {
	if listener == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := listener.Shutdown(ctx); err != nil {
		logrus.Error("Error stopping metrics listener: ", err)
	}
	listener = nil
}

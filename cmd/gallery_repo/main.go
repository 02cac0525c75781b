package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/getsentry/sentry-go"
	"github.com/pixelvault/gallery-repo/api"
	v1 "github.com/pixelvault/gallery-repo/api/v1"
	"github.com/pixelvault/gallery-repo/archives"
	"github.com/pixelvault/gallery-repo/common/config"
	"github.com/pixelvault/gallery-repo/common/logging"
	"github.com/pixelvault/gallery-repo/common/version"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/datastores"
	"github.com/pixelvault/gallery-repo/delivery"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/pixelvault/gallery-repo/pool"
	"github.com/pixelvault/gallery-repo/tasks"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "gallery-repo.yaml", "The path to the configuration")
	versionFlag := flag.Bool("version", false, "Prints the version and exits")
	flag.Parse()

	if *versionFlag {
		version.Print(false)
		return // exit 0
	}

	// Container deployments set the path through the environment instead
	if configEnv := os.Getenv("REPO_CONFIG"); configEnv != "" {
		configPath = &configEnv
	}

	config.Path = *configPath
	if config.Get().Sentry.Enabled {
		logrus.Info("Setting up Sentry...")
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.Get().Sentry.Dsn,
			Environment: config.Get().Sentry.Environment,
			Debug:       config.Get().Sentry.Debug,
			Release:     fmt.Sprintf("%s-%s", version.Version, version.GitCommit),
		})
		if err != nil {
			panic(err)
		}
	}
	defer sentry.Flush(2 * time.Second)
	defer sentry.Recover()

	err := logging.Setup(
		config.Get().General.LogColors,
		config.Get().General.JsonLogs,
		config.Get().General.LogLevel,
	)
	if err != nil {
		panic(err)
	}

	logrus.Info("Starting up...")
	version.Print(true)

	logrus.Info("Starting build workers...")
	pool.Init()

	logrus.Info("Connecting to order store...")
	db := database.GetInstance()

	logrus.Info("Connecting to object store...")
	objects, err := datastores.NewS3Store(config.Get().ObjectStore)
	if err != nil {
		logrus.Fatal(err)
	}

	orders := db.OrderStore()
	addons := db.AddonStore()
	buildTimeout := time.Duration(config.Get().Zips.BuildTimeoutMinutes) * time.Minute
	locks := archives.NewLockManager(orders, buildTimeout)
	builder := archives.NewBuilder(objects, orders, locks)
	dispatcher := archives.NewDispatcher(objects, orders, locks, pool.ZipQueue, builder)
	reporter := archives.NewStatusReporter(objects, locks)
	retention := archives.NewRetentionPolicy(objects, orders, addons)
	machine := delivery.NewStateMachine(orders, dispatcher, objects, pool.ZipQueue)
	backfill := tasks.NewBackfillRunner(orders, dispatcher, pool.ZipQueue)

	v1.Setup(&v1.Dependencies{
		DB:         db,
		Dispatcher: dispatcher,
		Reporter:   reporter,
		Retention:  retention,
		Machine:    machine,
		Backfill:   backfill,
	})

	logrus.Info("Starting config watcher...")
	config.OnReload(func() {
		pool.AdjustSize()
		metrics.Reload()
	})
	watcher := config.Watch()
	defer func(watcher *fsnotify.Watcher) {
		_ = watcher.Close()
	}(watcher)

	logrus.Info("Starting gallery repository...")
	metrics.Init()
	web := api.Init()

	stopWorkers := func() {
		logrus.Info("Stopping metrics...")
		metrics.Stop()

		logrus.Info("Draining build workers...")
		pool.Drain()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	signalled := false
	go func() {
		defer close(stop)
		<-stop
		signalled = true

		logrus.Warn("Stop signal received")
		stopWorkers()

		logrus.Info("Stopping web server...")
		api.Stop()
	}()

	// Block until the web server exits; workers still need stopping when
	// the exit wasn't signal-driven.
	web.Add(1)
	web.Wait()
	if !signalled {
		stopWorkers()
	}

	logrus.Info("Goodbye!")
}

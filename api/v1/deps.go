package v1

import (
	"github.com/pixelvault/gallery-repo/archives"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/delivery"
	"github.com/pixelvault/gallery-repo/tasks"
)

// Dependencies are the wired coordinator components the handlers call into.
// Set once at startup, before the web server accepts traffic.
type Dependencies struct {
	DB         *database.Database
	Dispatcher *archives.Dispatcher
	Reporter   *archives.StatusReporter
	Retention  *archives.RetentionPolicy
	Machine    *delivery.StateMachine
	Backfill   *tasks.BackfillRunner
}

var deps *Dependencies

func Setup(d *Dependencies) {
	deps = d
}

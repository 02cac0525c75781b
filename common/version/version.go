package version

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Set at build time via ldflags; SetDefaults fills in what the build left
// blank.
var GitCommit string
var Version string

func SetDefaults() {
	if Version == "" {
		Version = "unknown"
	}
	if GitCommit != "" {
		return
	}
	GitCommit = ".dev"
	if build, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range build.Settings {
			if setting.Key == "vcs.revision" {
				GitCommit = setting.Value
				break
			}
		}
	}
}

func Print(usingLogger bool) {
	SetDefaults()
	if usingLogger {
		logrus.WithFields(logrus.Fields{"version": Version, "commit": GitCommit}).Info("gallery-repo")
	} else {
		fmt.Printf("gallery-repo %s (%s)\n", Version, GitCommit)
	}
}

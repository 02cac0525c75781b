package common

import (
	"errors"
)

var ErrGalleryNotFound = errors.New("gallery not found")
var ErrOrderNotFound = errors.New("order not found")
var ErrObjectNotFound = errors.New("object not found")
var ErrArtifactNotFound = errors.New("artifact not found")
var ErrBuildInProgress = errors.New("build already in progress")
var ErrNoSourceFiles = errors.New("no source files to archive")
var ErrBuildAbandoned = errors.New("build window lost to another worker")
var ErrRetryExhausted = errors.New("build retry budget exhausted")
var ErrStatusConflict = errors.New("delivery status changed concurrently")
var ErrInvalidTransition = errors.New("invalid delivery status transition")
var ErrWrongUser = errors.New("wrong user")

package archives

import (
	"errors"

	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
)

type StatusKind string

const (
	StatusReady      StatusKind = "ready"
	StatusGenerating StatusKind = "generating"
	StatusError      StatusKind = "error"
	StatusNotStarted StatusKind = "not_started"
)

// ArtifactStatus is the decoded build state for one artifact, produced once
// at the store boundary. Which fields are meaningful depends on Status:
// generating carries SinceMillis, error carries the attempt bookkeeping.
type ArtifactStatus struct {
	Status      StatusKind
	ZipExists   bool
	ZipSize     int64
	SinceMillis int64

	Attempts int
	CanRetry bool
	Message  string
	Details  []database.ErrorRecord // owning principal only
}

// StatusReporter answers "is my artifact ready?" polls. Every call runs the
// stale-lock reclaim - polling is the only thing that guarantees progress for
// a crashed build.
type StatusReporter struct {
	objects ObjectStore
	locks   *LockManager
}

func NewStatusReporter(objects ObjectStore, locks *LockManager) *StatusReporter {
	return &StatusReporter{objects: objects, locks: locks}
}

const genericBuildErrorMessage = "The archive could not be generated"

func (s *StatusReporter) Status(ctx rcontext.RequestContext, order *database.DbOrder, t ArtifactType, forOwner bool) (*ArtifactStatus, error) {
	state := order.BuildState(string(t))

	info, err := s.objects.Stat(ctx, ArtifactKey(order.GalleryId, order.OrderId, t))
	if err != nil && !errors.Is(err, common.ErrObjectNotFound) {
		return nil, err
	}
	zipExists := info != nil
	var zipSize int64
	if zipExists {
		zipSize = info.Size
	}

	if state.ErrorFinal != nil {
		return s.errorStatus(state, zipExists, zipSize, false, forOwner), nil
	}

	if state.Generating {
		if s.locks.IsStale(state) {
			// A build that has been "generating" past the timeout is dead.
			// Reclassify rather than letting callers poll forever, and
			// reclaim so the next request can start fresh.
			if _, rerr := s.locks.ReclaimIfStale(ctx, order.GalleryId, order.OrderId, t, state); rerr != nil {
				ctx.Log.Warn("Failed to reclaim stale build lock during status check: ", rerr)
			}
			st := s.errorStatus(state, zipExists, zipSize, true, forOwner)
			if st.Message == "" {
				st.Message = genericBuildErrorMessage
			}
			return st, nil
		}
		return &ArtifactStatus{
			Status:      StatusGenerating,
			ZipExists:   zipExists,
			ZipSize:     zipSize,
			SinceMillis: state.GeneratingSince,
		}, nil
	}

	if zipExists {
		files, err := SourceDescriptors(ctx, s.objects, order, t)
		if err != nil {
			return nil, err
		}
		if info.FilesHash != "" && info.FilesHash == HashFileDescriptors(files) {
			return &ArtifactStatus{Status: StatusReady, ZipExists: true, ZipSize: zipSize}, nil
		}
	}

	if state.ErrorAttempts > 0 {
		return s.errorStatus(state, zipExists, zipSize, false, forOwner), nil
	}

	return &ArtifactStatus{Status: StatusNotStarted, ZipExists: zipExists, ZipSize: zipSize}, nil
}

func (s *StatusReporter) errorStatus(state database.BuildState, zipExists bool, zipSize int64, forceRetryable bool, forOwner bool) *ArtifactStatus {
	st := &ArtifactStatus{
		Status:    StatusError,
		ZipExists: zipExists,
		ZipSize:   zipSize,
		Attempts:  state.ErrorAttempts,
		CanRetry:  forceRetryable || state.ErrorFinal == nil,
		Message:   genericBuildErrorMessage,
	}
	if forOwner {
		// Only the owning principal sees the per-attempt history.
		st.Details = state.ErrorDetails
		if state.ErrorFinal != nil {
			st.Message = state.ErrorFinal.Message
		} else if len(state.ErrorDetails) > 0 {
			st.Message = state.ErrorDetails[len(state.ErrorDetails)-1].Message
		}
	}
	return st
}

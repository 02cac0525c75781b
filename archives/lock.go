package archives

import (
	"time"

	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/pixelvault/gallery-repo/util"
	"github.com/prometheus/client_golang/prometheus"
)

// The reclaim window is the worker's maximum run time plus a safety margin:
// a lock younger than this may belong to a healthy in-flight build.
const lockSafetyMargin = 1 * time.Minute

// LockManager guards the per-(order, artifact type) build window. There is no
// native mutex in the order store - mutual exclusion comes entirely from the
// conditional update on the generating flag, and liveness from the wall-clock
// timestamp written next to it.
type LockManager struct {
	orders       OrderStore
	buildTimeout time.Duration
}

func NewLockManager(orders OrderStore, buildTimeout time.Duration) *LockManager {
	return &LockManager{orders: orders, buildTimeout: buildTimeout}
}

// TryAcquire returns common.ErrBuildInProgress when another build legitimately
// holds the window. Callers surface that as "still generating", never as a
// failure.
func (l *LockManager) TryAcquire(ctx rcontext.RequestContext, galleryId string, orderId string, t ArtifactType, filesHash string) error {
	return l.orders.TryAcquireBuildLock(ctx, galleryId, orderId, string(t), util.NowMillis(), filesHash)
}

func (l *LockManager) Release(ctx rcontext.RequestContext, galleryId string, orderId string, t ArtifactType) error {
	return l.orders.ReleaseBuildLock(ctx, galleryId, orderId, string(t))
}

// ReclaimIfStale clears a lock whose holder has been silent past the timeout.
// It must run on every status check: nothing else guarantees progress for a
// build that crashed without releasing.
func (l *LockManager) ReclaimIfStale(ctx rcontext.RequestContext, galleryId string, orderId string, t ArtifactType, state database.BuildState) (bool, error) {
	if !state.Generating {
		return false, nil
	}
	if !l.IsStale(state) {
		return false, nil
	}
	cutoff := util.NowMillis() - l.staleAfter().Milliseconds()
	reclaimed, err := l.orders.ReclaimBuildLock(ctx, galleryId, orderId, string(t), cutoff)
	if err != nil {
		return false, err
	}
	if reclaimed {
		metrics.LocksReclaimed.With(prometheus.Labels{"artifactType": string(t)}).Inc()
		ctx.Log.Warnf("Reclaimed stale %s build lock (held since %s)", t, util.FromMillis(state.GeneratingSince).Format(time.RFC3339))
	}
	return reclaimed, nil
}

func (l *LockManager) IsStale(state database.BuildState) bool {
	if !state.Generating {
		return false
	}
	age := util.NowMillis() - state.GeneratingSince
	return age > l.staleAfter().Milliseconds()
}

func (l *LockManager) staleAfter() time.Duration {
	return l.buildTimeout + lockSafetyMargin
}

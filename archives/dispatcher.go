package archives

import (
	"errors"

	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/pool"
	"github.com/sirupsen/logrus"
)

type DispatchState string

const (
	DispatchReady      DispatchState = "ready"
	DispatchGenerating DispatchState = "generating"
)

// BuildRequest is the payload handed to the asynchronous worker. It carries
// everything the builder needs so the worker never re-lists the source set it
// was dispatched for.
type BuildRequest struct {
	GalleryId    string       `json:"galleryId"`
	OrderId      string       `json:"orderId"`
	Type         ArtifactType `json:"type"`
	FileKeys     []string     `json:"fileKeys"`
	ExpectedHash string       `json:"expectedHash"`
}

// Dispatcher decides whether a cached artifact is still good and otherwise
// gets exactly one build scheduled for it.
type Dispatcher struct {
	objects ObjectStore
	orders  OrderStore
	locks   *LockManager
	queue   *pool.Queue
	builder *Builder
}

func NewDispatcher(objects ObjectStore, orders OrderStore, locks *LockManager, queue *pool.Queue, builder *Builder) *Dispatcher {
	return &Dispatcher{
		objects: objects,
		orders:  orders,
		locks:   locks,
		queue:   queue,
		builder: builder,
	}
}

// SourceDescriptors lists the files currently eligible for the artifact. For
// selection zips this is the client's chosen subset of the gallery originals
// (or all of them when no selection was made); for final zips it is whatever
// the photographer delivered under the order's finals prefix. Selected files
// that have since been deleted simply drop out of the listing - the source
// set is allowed to shrink.
func SourceDescriptors(ctx rcontext.RequestContext, objects ObjectStore, order *database.DbOrder, t ArtifactType) ([]FileDescriptor, error) {
	if t == ArtifactFinal {
		return objects.ListPrefix(ctx, FinalsPrefix(order.GalleryId, order.OrderId))
	}

	listed, err := objects.ListPrefix(ctx, OriginalsPrefix(order.GalleryId))
	if err != nil {
		return nil, err
	}
	if len(order.SelectedKeys) == 0 {
		return listed, nil
	}

	selected := make(map[string]bool, len(order.SelectedKeys))
	for _, k := range order.SelectedKeys {
		selected[k] = true
	}

	files := make([]FileDescriptor, 0, len(order.SelectedKeys))
	for _, fd := range listed {
		if selected[fd.Filename()] {
			files = append(files, fd)
		}
	}
	return files, nil
}

// Ensure implements the dispatch algorithm: freshness check against the
// stored hash, stale lock reclaim, then conditional acquire and fire-and-
// forget scheduling. It only ever answers "ready" or "generating" - losing
// the acquisition race means someone else is building, which is fine.
func (d *Dispatcher) Ensure(ctx rcontext.RequestContext, order *database.DbOrder, t ArtifactType) (DispatchState, error) {
	ctx = ctx.LogWithFields(logrus.Fields{
		"galleryId":    order.GalleryId,
		"orderId":      order.OrderId,
		"artifactType": t,
	})

	files, err := SourceDescriptors(ctx, d.objects, order, t)
	if err != nil {
		return "", err
	}
	currentHash := HashFileDescriptors(files)

	state := order.BuildState(string(t))
	key := ArtifactKey(order.GalleryId, order.OrderId, t)

	info, err := d.objects.Stat(ctx, key)
	if err != nil && !errors.Is(err, common.ErrObjectNotFound) {
		return "", err
	}
	if info != nil && info.FilesHash != "" && info.FilesHash == currentHash {
		// Cache hit. A lingering generating flag here means a previous
		// build finished its upload but died before releasing - clear it.
		if state.Generating {
			if rerr := d.locks.Release(ctx, order.GalleryId, order.OrderId, t); rerr != nil {
				ctx.Log.Warn("Failed to clear lingering build lock on cache hit: ", rerr)
			}
		}
		return DispatchReady, nil
	}

	if state.ErrorFinal != nil {
		// Out of automatic retries. The owner has to reset the error state
		// before anything gets dispatched again.
		return "", common.ErrRetryExhausted
	}

	if state.Generating {
		reclaimed, err := d.locks.ReclaimIfStale(ctx, order.GalleryId, order.OrderId, t, state)
		if err != nil {
			return "", err
		}
		if !reclaimed {
			return DispatchGenerating, nil
		}
	}

	err = d.locks.TryAcquire(ctx, order.GalleryId, order.OrderId, t, currentHash)
	if errors.Is(err, common.ErrBuildInProgress) {
		return DispatchGenerating, nil
	}
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, len(files))
	for _, fd := range files {
		keys = append(keys, fd.Key)
	}
	job := BuildRequest{
		GalleryId:    order.GalleryId,
		OrderId:      order.OrderId,
		Type:         t,
		FileKeys:     keys,
		ExpectedHash: currentHash,
	}

	if err = d.queue.Schedule(func() {
		d.builder.Run(rcontext.Initial().LogWithFields(ctx.Log.Data), job)
	}); err != nil {
		// Couldn't even enqueue - give the window back so the next caller
		// can try again.
		if rerr := d.locks.Release(ctx, order.GalleryId, order.OrderId, t); rerr != nil {
			ctx.Log.Warn("Failed to release build lock after scheduling error: ", rerr)
		}
		return "", err
	}

	ctx.Log.Info("Scheduled zip build for hash ", currentHash)
	return DispatchGenerating, nil
}

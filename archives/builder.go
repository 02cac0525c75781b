package archives

import (
	"archive/zip"
	"compress/flate"
	"errors"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getsentry/sentry-go"
	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/pixelvault/gallery-repo/util"
	"github.com/pixelvault/gallery-repo/util/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// One automatic retry: the second consecutive failure is terminal until an
// owner explicitly resets the error state.
const MaxBuildAttempts = 2

// Builder streams source files into a zip and persists the result. It runs
// out-of-band on the worker pool, never on a request path.
type Builder struct {
	objects ObjectStore
	orders  OrderStore
	locks   *LockManager
}

func NewBuilder(objects ObjectStore, orders OrderStore, locks *LockManager) *Builder {
	return &Builder{objects: objects, orders: orders, locks: locks}
}

func (b *Builder) Run(ctx rcontext.RequestContext, job BuildRequest) {
	buildId, err := ids.NewUniqueId()
	if err != nil {
		buildId = "?"
	}
	ctx = ctx.LogWithFields(logrus.Fields{
		"galleryId":    job.GalleryId,
		"orderId":      job.OrderId,
		"artifactType": job.Type,
		"buildId":      buildId,
	})

	startedAt := time.Now()
	size, err := b.buildOnce(ctx, job)
	if err != nil {
		ctx.Log.Error("Zip build failed: ", err)
		sentry.CaptureException(err)
		metrics.ZipBuilds.With(prometheus.Labels{"artifactType": string(job.Type), "result": "failure"}).Inc()
		b.recordFailure(ctx, job, err)
		return
	}

	metrics.ZipBuilds.With(prometheus.Labels{"artifactType": string(job.Type), "result": "success"}).Inc()
	metrics.ZipBuildSeconds.With(prometheus.Labels{"artifactType": string(job.Type)}).Observe(time.Since(startedAt).Seconds())
	ctx.Log.Infof("Zip build finished: %s in %s", humanize.Bytes(uint64(size)), time.Since(startedAt).Round(time.Millisecond))

	if err = b.locks.Release(ctx, job.GalleryId, job.OrderId, job.Type); err != nil {
		ctx.Log.Error("Failed to release build lock after successful build: ", err)
		sentry.CaptureException(err)
	}
}

func (b *Builder) buildOnce(ctx rcontext.RequestContext, job BuildRequest) (int64, error) {
	f, err := os.CreateTemp(os.TempDir(), "gallery-zip")
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	added := 0
	for _, key := range job.FileKeys {
		rc, size, err := b.objects.Get(ctx, key)
		if errors.Is(err, common.ErrObjectNotFound) {
			// Deleted between listing and building - not fatal.
			ctx.Log.Warn("Skipping missing source file: ", key)
			continue
		}
		if err != nil {
			_ = zw.Close()
			return 0, err
		}
		if size == 0 {
			ctx.Log.Warn("Skipping zero-byte source file: ", key)
			_ = rc.Close()
			continue
		}

		fd := FileDescriptor{Key: key}
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     fd.Filename(),
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			_ = rc.Close()
			_ = zw.Close()
			return 0, err
		}
		if _, err = io.Copy(entry, rc); err != nil {
			_ = rc.Close()
			_ = zw.Close()
			return 0, err
		}
		_ = rc.Close()
		added++
	}

	if added == 0 {
		_ = zw.Close()
		return 0, common.ErrNoSourceFiles
	}
	if err = zw.Close(); err != nil {
		return 0, err
	}

	// Re-check we still own the build window. A very slow build can outlive
	// its lock and get reclaimed; in that case someone else owns the window
	// now and we must not overwrite their work.
	order, err := b.orders.GetOrder(ctx, job.GalleryId, job.OrderId)
	if err != nil {
		return 0, err
	}
	state := order.BuildState(string(job.Type))
	if !state.Generating || state.FilesHash != job.ExpectedHash {
		return 0, common.ErrBuildAbandoned
	}

	stat, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	key := ArtifactKey(job.GalleryId, job.OrderId, job.Type)
	err = b.objects.Put(ctx, key, f, stat.Size(), "application/zip", map[string]string{
		"Files-Hash": job.ExpectedHash,
	})
	if err != nil {
		return 0, err
	}

	if err = b.orders.SetArtifact(ctx, job.GalleryId, job.OrderId, string(job.Type), key, job.ExpectedHash); err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (b *Builder) recordFailure(ctx rcontext.RequestContext, job BuildRequest, buildErr error) {
	if errors.Is(buildErr, common.ErrBuildAbandoned) {
		// The window belongs to someone else now. Don't touch the lock or
		// the error history - the new owner is responsible for both.
		return
	}

	record := database.ErrorRecord{Message: buildErr.Error(), Timestamp: util.NowMillis()}
	attempts, err := b.orders.RecordBuildError(ctx, job.GalleryId, job.OrderId, string(job.Type), record)
	if err != nil {
		ctx.Log.Error("Failed to record build error: ", err)
		sentry.CaptureException(err)
	} else if attempts >= MaxBuildAttempts {
		if err = b.orders.SetFinalBuildError(ctx, job.GalleryId, job.OrderId, string(job.Type), record); err != nil {
			ctx.Log.Error("Failed to record terminal build error: ", err)
			sentry.CaptureException(err)
		}
	}

	if err = b.locks.Release(ctx, job.GalleryId, job.OrderId, job.Type); err != nil {
		ctx.Log.Error("Failed to release build lock after failed build: ", err)
		sentry.CaptureException(err)
	}
}

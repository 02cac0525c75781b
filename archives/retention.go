package archives

import (
	"errors"

	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
)

type RetentionMode string

const (
	RetentionDisposable RetentionMode = "disposable"
	RetentionPersistent RetentionMode = "persistent"
)

// RetentionPolicy decides what happens to an artifact after it has been
// served. Disposable artifacts are deleted immediately (every later download
// is a forced rebuild); persistent ones stay until the source set changes.
type RetentionPolicy struct {
	objects ObjectStore
	orders  OrderStore
	addons  AddonStore
}

func NewRetentionPolicy(objects ObjectStore, orders OrderStore, addons AddonStore) *RetentionPolicy {
	return &RetentionPolicy{objects: objects, orders: orders, addons: addons}
}

// Mode checks the addon at call time, never a cached decision: the backup
// addon may have been purchased after the artifact was built.
func (p *RetentionPolicy) Mode(ctx rcontext.RequestContext, galleryId string) (RetentionMode, error) {
	has, err := p.addons.HasBackupStorage(ctx, galleryId)
	if err != nil {
		return "", err
	}
	if has {
		return RetentionPersistent, nil
	}
	return RetentionDisposable, nil
}

// AfterServe applies the policy once a download has completed. Deleting the
// artifact never touches the order's delivery status.
func (p *RetentionPolicy) AfterServe(ctx rcontext.RequestContext, order *database.DbOrder, t ArtifactType) error {
	mode, err := p.Mode(ctx, order.GalleryId)
	if err != nil {
		return err
	}
	if mode == RetentionPersistent {
		return nil
	}

	key := ArtifactKey(order.GalleryId, order.OrderId, t)
	if err = p.objects.Delete(ctx, key); err != nil && !errors.Is(err, common.ErrObjectNotFound) {
		return err
	}
	if err = p.orders.ClearArtifact(ctx, order.GalleryId, order.OrderId, string(t)); err != nil {
		return err
	}
	ctx.Log.Info("Deleted served artifact per disposable retention: ", key)
	return nil
}

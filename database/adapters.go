package database

import (
	"github.com/pixelvault/gallery-repo/common/rcontext"
)

// OrderStoreAdapter exposes the orders table through per-call contexts, the
// shape the archive coordinator and delivery state machine are written
// against.
type OrderStoreAdapter struct {
	db *Database
}

func (d *Database) OrderStore() *OrderStoreAdapter {
	return &OrderStoreAdapter{db: d}
}

func (a *OrderStoreAdapter) GetOrder(ctx rcontext.RequestContext, galleryId string, orderId string) (*DbOrder, error) {
	return a.db.Orders.Prepare(ctx).Get(galleryId, orderId)
}

func (a *OrderStoreAdapter) ListOrders(ctx rcontext.RequestContext, galleryId string) ([]*DbOrder, error) {
	return a.db.Orders.Prepare(ctx).ListByGallery(galleryId)
}

func (a *OrderStoreAdapter) TryAcquireBuildLock(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, nowMillis int64, filesHash string) error {
	return a.db.Orders.Prepare(ctx).TryAcquireBuildLock(galleryId, orderId, artifactType, nowMillis, filesHash)
}

func (a *OrderStoreAdapter) ReleaseBuildLock(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) error {
	return a.db.Orders.Prepare(ctx).ReleaseBuildLock(galleryId, orderId, artifactType)
}

func (a *OrderStoreAdapter) ReclaimBuildLock(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, cutoffMillis int64) (bool, error) {
	return a.db.Orders.Prepare(ctx).ReclaimBuildLock(galleryId, orderId, artifactType, cutoffMillis)
}

func (a *OrderStoreAdapter) SetArtifact(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, zipKey string, filesHash string) error {
	return a.db.Orders.Prepare(ctx).SetArtifact(galleryId, orderId, artifactType, zipKey, filesHash)
}

func (a *OrderStoreAdapter) ClearArtifact(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) error {
	return a.db.Orders.Prepare(ctx).ClearArtifact(galleryId, orderId, artifactType)
}

func (a *OrderStoreAdapter) RecordBuildError(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, record ErrorRecord) (int, error) {
	return a.db.Orders.Prepare(ctx).RecordBuildError(galleryId, orderId, artifactType, record)
}

func (a *OrderStoreAdapter) SetFinalBuildError(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, record ErrorRecord) error {
	return a.db.Orders.Prepare(ctx).SetFinalBuildError(galleryId, orderId, artifactType, record)
}

func (a *OrderStoreAdapter) ResetBuildErrors(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) error {
	return a.db.Orders.Prepare(ctx).ResetBuildErrors(galleryId, orderId, artifactType)
}

func (a *OrderStoreAdapter) IncrementRetryCount(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) (int, error) {
	return a.db.Orders.Prepare(ctx).IncrementRetryCount(galleryId, orderId, artifactType)
}

func (a *OrderStoreAdapter) UpdateDeliveryStatus(ctx rcontext.RequestContext, galleryId string, orderId string, expected string, next string, rememberPrevious bool) error {
	return a.db.Orders.Prepare(ctx).UpdateDeliveryStatus(galleryId, orderId, expected, next, rememberPrevious)
}

// AddonStoreAdapter answers addon presence questions for the retention
// policy.
type AddonStoreAdapter struct {
	db *Database
}

func (d *Database) AddonStore() *AddonStoreAdapter {
	return &AddonStoreAdapter{db: d}
}

func (a *AddonStoreAdapter) HasBackupStorage(ctx rcontext.RequestContext, galleryId string) (bool, error) {
	return a.db.Addons.Prepare(ctx).Has(galleryId, AddonBackupStorage)
}

package tasks

import (
	"github.com/pixelvault/gallery-repo/archives"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/delivery"
	"github.com/pixelvault/gallery-repo/pool"
	"github.com/sirupsen/logrus"
)

type orderLister interface {
	ListOrders(ctx rcontext.RequestContext, galleryId string) ([]*database.DbOrder, error)
}

// BackfillRunner builds the archives a gallery's existing orders are entitled
// to once the persistent retention addon is purchased. Before the addon an
// artifact only lives between build and download, so most orders won't have
// one.
type BackfillRunner struct {
	orders     orderLister
	dispatcher *archives.Dispatcher
	queue      *pool.Queue
}

func NewBackfillRunner(orders orderLister, dispatcher *archives.Dispatcher, queue *pool.Queue) *BackfillRunner {
	return &BackfillRunner{
		orders:     orders,
		dispatcher: dispatcher,
		queue:      queue,
	}
}

// ScheduleForGallery queues the backfill pass. The request that recorded the
// addon purchase doesn't wait for builds.
func (r *BackfillRunner) ScheduleForGallery(galleryId string) error {
	ctx := rcontext.Initial().LogWithFields(logrus.Fields{
		"galleryId": galleryId,
		"action":    "retention_backfill",
	})
	return r.queue.Schedule(func() {
		r.runForGallery(ctx, galleryId)
	})
}

func (r *BackfillRunner) runForGallery(ctx rcontext.RequestContext, galleryId string) {
	orders, err := r.orders.ListOrders(ctx, galleryId)
	if err != nil {
		ctx.Log.Error("Failed to list orders for backfill: ", err)
		return
	}

	dispatched := 0
	for _, order := range orders {
		for _, t := range qualifyingTypes(order) {
			state, err := r.dispatcher.Ensure(ctx, order, t)
			if err != nil {
				ctx.Log.Warn("Backfill dispatch failed for order ", order.OrderId, " (", t, "): ", err)
				continue
			}
			if state == archives.DispatchGenerating {
				dispatched++
			}
		}
	}
	ctx.Log.Info("Backfill pass dispatched ", dispatched, " builds across ", len(orders), " orders")
}

// qualifyingTypes maps the order's delivery progress to the artifacts it is
// entitled to: a fixed selection once approved, final files once delivery has
// started. Ensure's hash check turns orders that already hold a current
// artifact into no-ops.
func qualifyingTypes(order *database.DbOrder) []archives.ArtifactType {
	switch delivery.Status(order.DeliveryStatus) {
	case delivery.StatusClientApproved:
		return []archives.ArtifactType{archives.ArtifactSelection}
	case delivery.StatusPreparingDelivery, delivery.StatusDelivered:
		return []archives.ArtifactType{archives.ArtifactSelection, archives.ArtifactFinal}
	default:
		return nil
	}
}

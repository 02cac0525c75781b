package delivery

import (
	"errors"

	"github.com/pixelvault/gallery-repo/archives"
	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/pool"
	"github.com/sirupsen/logrus"
)

// OrderStore is the slice of the order record surface the state machine
// needs: reads plus the guarded status update.
type OrderStore interface {
	GetOrder(ctx rcontext.RequestContext, galleryId string, orderId string) (*database.DbOrder, error)
	UpdateDeliveryStatus(ctx rcontext.RequestContext, galleryId string, orderId string, expected string, next string, rememberPrevious bool) error
}

// StateMachine applies delivery transitions and fires the build/cleanup side
// effects they carry. Every transition is a conditional update on the order
// record, so two racing triggers resolve to exactly one winner.
type StateMachine struct {
	orders     OrderStore
	dispatcher *archives.Dispatcher
	objects    archives.ObjectStore
	queue      *pool.Queue
}

func NewStateMachine(orders OrderStore, dispatcher *archives.Dispatcher, objects archives.ObjectStore, queue *pool.Queue) *StateMachine {
	return &StateMachine{
		orders:     orders,
		dispatcher: dispatcher,
		objects:    objects,
		queue:      queue,
	}
}

// transition moves the order from its current status to next, checking the
// allowed edges first. Losing the conditional update race to a concurrent
// trigger that reached the same target is treated as success.
func (m *StateMachine) transition(ctx rcontext.RequestContext, galleryId string, orderId string, next Status, rememberPrevious bool) (*database.DbOrder, error) {
	order, err := m.orders.GetOrder(ctx, galleryId, orderId)
	if err != nil {
		return nil, err
	}

	current := Status(order.DeliveryStatus)
	if current == next {
		return order, nil
	}
	if !CanTransition(current, next) {
		return nil, common.ErrInvalidTransition
	}

	err = m.orders.UpdateDeliveryStatus(ctx, galleryId, orderId, string(current), string(next), rememberPrevious)
	if errors.Is(err, common.ErrStatusConflict) {
		refreshed, gerr := m.orders.GetOrder(ctx, galleryId, orderId)
		if gerr != nil {
			return nil, gerr
		}
		if Status(refreshed.DeliveryStatus) == next {
			return refreshed, nil
		}
		return nil, common.ErrStatusConflict
	}
	if err != nil {
		return nil, err
	}

	ctx.Log.Info("Order moved from ", current, " to ", next)
	order.DeliveryStatus = string(next)
	if rememberPrevious {
		order.PreviousStatus = string(current)
	}
	return order, nil
}

// ApproveSelection fixes the client's selection and kicks off the selection
// zip so it is (usually) ready by the time the photographer looks for it.
func (m *StateMachine) ApproveSelection(ctx rcontext.RequestContext, galleryId string, orderId string) error {
	order, err := m.transition(ctx, galleryId, orderId, StatusClientApproved, false)
	if err != nil {
		return err
	}

	if _, err = m.dispatcher.Ensure(ctx, order, archives.ArtifactSelection); err != nil {
		// The archive is rebuilt on demand at download time, so a failed
		// eager dispatch doesn't undo the approval.
		ctx.Log.Warn("Failed to dispatch selection build on approval: ", err)
	}
	return nil
}

// RequestChanges parks the order in CHANGES_REQUESTED, recording where it
// came from so a denial can put it back.
func (m *StateMachine) RequestChanges(ctx rcontext.RequestContext, galleryId string, orderId string) error {
	_, err := m.transition(ctx, galleryId, orderId, StatusChangesRequested, true)
	return err
}

// ResolveChanges answers a change request: approving reopens the selection,
// denying reverts the order to whatever status it held before the request.
// Neither touches a previously built selection artifact - if the selection
// actually changes afterwards the hash check catches it.
func (m *StateMachine) ResolveChanges(ctx rcontext.RequestContext, galleryId string, orderId string, approve bool) error {
	if approve {
		_, err := m.transition(ctx, galleryId, orderId, StatusClientSelecting, false)
		return err
	}

	order, err := m.orders.GetOrder(ctx, galleryId, orderId)
	if err != nil {
		return err
	}
	if Status(order.DeliveryStatus) != StatusChangesRequested {
		return common.ErrInvalidTransition
	}
	previous := Status(order.PreviousStatus)
	if previous == "" {
		previous = StatusClientSelecting
	}
	_, err = m.transition(ctx, galleryId, orderId, previous, false)
	return err
}

// FinalFileUploaded records the first final upload by moving the order to
// PREPARING_DELIVERY. Uploads after the first find the order already there
// and are a no-op. From this point the selection originals are fair game for
// deletion, which selection rebuilds tolerate.
func (m *StateMachine) FinalFileUploaded(ctx rcontext.RequestContext, galleryId string, orderId string) error {
	_, err := m.transition(ctx, galleryId, orderId, StatusPreparingDelivery, false)
	return err
}

// MarkDelivered closes the order out. The final zip is pre-built so the
// client's first download is fast, and the now-redundant originals are
// deleted in the background (previews live under their own prefix and are
// kept for gallery display).
func (m *StateMachine) MarkDelivered(ctx rcontext.RequestContext, galleryId string, orderId string) error {
	order, err := m.transition(ctx, galleryId, orderId, StatusDelivered, false)
	if err != nil {
		return err
	}

	if _, err = m.dispatcher.Ensure(ctx, order, archives.ArtifactFinal); err != nil {
		ctx.Log.Warn("Failed to dispatch final build on delivery: ", err)
	}

	cleanupCtx := rcontext.Initial().LogWithFields(logrus.Fields{
		"galleryId": galleryId,
		"orderId":   orderId,
		"action":    "source_cleanup",
	})
	if err = m.queue.Schedule(func() {
		m.cleanupSources(cleanupCtx, galleryId)
	}); err != nil {
		ctx.Log.Warn("Failed to schedule source cleanup: ", err)
	}
	return nil
}

// Cancel is reachable from every non-terminal status. Cancelling twice is
// fine; cancelling a delivered order is not.
func (m *StateMachine) Cancel(ctx rcontext.RequestContext, galleryId string, orderId string) error {
	_, err := m.transition(ctx, galleryId, orderId, StatusCancelled, false)
	return err
}

// cleanupSources deletes the gallery originals once the order is delivered.
// Best effort: a failed delete is logged and left for the next delivery in
// the gallery (or the storage lifecycle rules) to retry.
func (m *StateMachine) cleanupSources(ctx rcontext.RequestContext, galleryId string) {
	files, err := m.objects.ListPrefix(ctx, archives.OriginalsPrefix(galleryId))
	if err != nil {
		ctx.Log.Error("Failed to list originals for cleanup: ", err)
		return
	}

	deleted := 0
	for _, fd := range files {
		if err = m.objects.Delete(ctx, fd.Key); err != nil {
			ctx.Log.Warn("Failed to delete source object ", fd.Key, ": ", err)
			continue
		}
		deleted++
	}
	ctx.Log.Info("Deleted ", deleted, " source objects after delivery")
}

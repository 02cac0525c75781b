package v1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/pixelvault/gallery-repo/api/_apimeta"
	"github.com/pixelvault/gallery-repo/api/_responses"
	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
)

type TransitionResponse struct {
	DeliveryStatus string `json:"deliveryStatus"`
}

func runTransition(r *http.Request, rctx rcontext.RequestContext, fn func(ctx rcontext.RequestContext, galleryId string, orderId string) error) interface{} {
	order, rctx, errRes := orderFromRequest(r, rctx)
	if errRes != nil {
		return errRes
	}

	if err := fn(rctx, order.GalleryId, order.OrderId); err != nil {
		if errors.Is(err, common.ErrInvalidTransition) {
			return _responses.Conflict("order cannot make that transition from its current status")
		}
		if errors.Is(err, common.ErrStatusConflict) {
			return _responses.Conflict("order status changed concurrently - retry")
		}
		rctx.Log.Error("Unexpected error applying transition: ", err)
		sentry.CaptureException(err)
		return _responses.InternalServerError("unexpected error updating order")
	}

	updated, err := deps.DB.OrderStore().GetOrder(rctx, order.GalleryId, order.OrderId)
	if err != nil {
		rctx.Log.Error("Unexpected error reloading order: ", err)
		sentry.CaptureException(err)
		return _responses.InternalServerError("unexpected error reloading order")
	}
	return &TransitionResponse{DeliveryStatus: updated.DeliveryStatus}
}

// ApproveSelection locks in the client's selection and starts the selection
// zip building in the background.
func ApproveSelection(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	return runTransition(r, rctx, deps.Machine.ApproveSelection)
}

func RequestChanges(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	return runTransition(r, rctx, deps.Machine.RequestChanges)
}

type resolveChangesBody struct {
	Approve bool `json:"approve"`
}

func ResolveChanges(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	body := resolveChangesBody{}
	if b, err := io.ReadAll(r.Body); err != nil {
		return _responses.BadRequest("failed to read request body")
	} else if len(b) > 0 {
		if err = json.Unmarshal(b, &body); err != nil {
			return _responses.BadRequest("invalid request body")
		}
	}
	return runTransition(r, rctx, func(ctx rcontext.RequestContext, galleryId string, orderId string) error {
		return deps.Machine.ResolveChanges(ctx, galleryId, orderId, body.Approve)
	})
}

// FinalFileUploaded is called by the upload flow once the first final photo
// lands. Repeat calls for later uploads are no-ops.
func FinalFileUploaded(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	return runTransition(r, rctx, deps.Machine.FinalFileUploaded)
}

func MarkDelivered(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	return runTransition(r, rctx, deps.Machine.MarkDelivered)
}

func CancelOrder(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	return runTransition(r, rctx, deps.Machine.Cancel)
}

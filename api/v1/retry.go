package v1

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/pixelvault/gallery-repo/api/_apimeta"
	"github.com/pixelvault/gallery-repo/api/_responses"
	"github.com/pixelvault/gallery-repo/common/rcontext"
)

type RetryResponse struct {
	Status     string `json:"status"`
	RetryCount int    `json:"retryCount"`
}

// RetryBuild is the owner's manual reset. Builds retry themselves once; after
// the second failure the error is terminal and nothing moves until this
// endpoint clears the error fields and re-dispatches.
func RetryBuild(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	order, rctx, errRes := orderFromRequest(r, rctx)
	if errRes != nil {
		return errRes
	}
	t, errRes := artifactTypeFromRequest(r)
	if errRes != nil {
		return errRes
	}

	orders := deps.DB.OrderStore()
	if err := orders.ResetBuildErrors(rctx, order.GalleryId, order.OrderId, string(t)); err != nil {
		rctx.Log.Error("Unexpected error resetting build errors: ", err)
		sentry.CaptureException(err)
		return _responses.InternalServerError("unexpected error resetting build errors")
	}
	retries, err := orders.IncrementRetryCount(rctx, order.GalleryId, order.OrderId, string(t))
	if err != nil {
		rctx.Log.Error("Unexpected error counting retry: ", err)
		sentry.CaptureException(err)
		return _responses.InternalServerError("unexpected error counting retry")
	}

	// Re-read so the dispatch decision sees the cleared error fields.
	order, err = orders.GetOrder(rctx, order.GalleryId, order.OrderId)
	if err != nil {
		rctx.Log.Error("Unexpected error reloading order: ", err)
		sentry.CaptureException(err)
		return _responses.InternalServerError("unexpected error reloading order")
	}

	state, err := deps.Dispatcher.Ensure(rctx, order, t)
	if err != nil {
		rctx.Log.Error("Unexpected error dispatching retried build: ", err)
		sentry.CaptureException(err)
		return _responses.InternalServerError("unexpected error dispatching build")
	}
	return &RetryResponse{Status: string(state), RetryCount: retries}
}

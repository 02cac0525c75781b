package v1

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/pixelvault/gallery-repo/api/_apimeta"
	"github.com/pixelvault/gallery-repo/api/_responses"
	"github.com/pixelvault/gallery-repo/api/_routers"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/util"
)

type AddonResponse struct {
	AddonType string `json:"addonType"`
	Enabled   bool   `json:"enabled"`
}

// EnableBackupStorage records a backup storage purchase and schedules the
// backfill pass that builds archives for the gallery's existing orders.
// Orders served before this point ran under disposable retention, so most
// won't have one.
func EnableBackupStorage(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	galleryId := _routers.GetParam("galleryId", r)
	if galleryId == "" {
		return _responses.BadRequest("gallery ID is required")
	}

	err := deps.DB.Addons.Prepare(rctx).Put(&database.DbAddon{
		GalleryId:   galleryId,
		AddonType:   database.AddonBackupStorage,
		PurchasedTs: util.NowMillis(),
	})
	if err != nil {
		rctx.Log.Error("Unexpected error recording addon: ", err)
		sentry.CaptureException(err)
		return _responses.InternalServerError("unexpected error recording addon")
	}

	if err = deps.Backfill.ScheduleForGallery(galleryId); err != nil {
		// The addon is recorded; per-order builds will still happen lazily
		// on the next download for each order.
		rctx.Log.Warn("Failed to schedule retention backfill: ", err)
		sentry.CaptureException(err)
	}

	return &AddonResponse{AddonType: database.AddonBackupStorage, Enabled: true}
}

package v1

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/pixelvault/gallery-repo/api/_responses"
	"github.com/pixelvault/gallery-repo/api/_routers"
	"github.com/pixelvault/gallery-repo/archives"
	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/sirupsen/logrus"
)

// orderFromRequest resolves the gallery/order path params to a record. The
// second return is a ready-to-serve error response when resolution fails.
func orderFromRequest(r *http.Request, rctx rcontext.RequestContext) (*database.DbOrder, rcontext.RequestContext, interface{}) {
	galleryId := _routers.GetParam("galleryId", r)
	orderId := _routers.GetParam("orderId", r)
	if galleryId == "" || orderId == "" {
		return nil, rctx, _responses.BadRequest("gallery and order IDs are required")
	}

	rctx = rctx.LogWithFields(logrus.Fields{"galleryId": galleryId, "orderId": orderId})

	order, err := deps.DB.OrderStore().GetOrder(rctx, galleryId, orderId)
	if err != nil {
		if errors.Is(err, common.ErrOrderNotFound) {
			return nil, rctx, _responses.NotFoundError()
		}
		rctx.Log.Error("Unexpected error loading order: ", err)
		sentry.CaptureException(err)
		return nil, rctx, _responses.InternalServerError("unexpected error loading order")
	}
	return order, rctx, nil
}

func artifactTypeFromRequest(r *http.Request) (archives.ArtifactType, interface{}) {
	t, ok := archives.ParseArtifactType(_routers.GetParam("artifactType", r))
	if !ok {
		return "", _responses.BadRequest("unknown artifact type")
	}
	return t, nil
}

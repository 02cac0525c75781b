package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/pixelvault/gallery-repo/api/_apimeta"
	"github.com/pixelvault/gallery-repo/api/_responses"
	"github.com/pixelvault/gallery-repo/archives"
	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/delivery"
	"github.com/pixelvault/gallery-repo/util"
)

type GeneratingResponse struct {
	Status        string `json:"status"`
	SinceTs       int64  `json:"generatingSinceTs,omitempty"`
	ElapsedMillis int64  `json:"elapsedMs,omitempty"`
}

type DownloadLinkResponse struct {
	Status    string `json:"status"`
	Url       string `json:"url"`
	ExpiresTs int64  `json:"expiresTs"`
}

// DownloadArtifact ensures the zip exists and serves it: a signed URL for
// galleries on persistent retention, a direct stream for disposable ones
// (which deletes the artifact once the transfer completes), or a 202 while a
// build is still running.
func DownloadArtifact(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	order, rctx, errRes := orderFromRequest(r, rctx)
	if errRes != nil {
		return errRes
	}
	t, errRes := artifactTypeFromRequest(r)
	if errRes != nil {
		return errRes
	}
	if delivery.Status(order.DeliveryStatus) == delivery.StatusCancelled {
		return _responses.BadRequest("order is cancelled")
	}

	res, err := deps.Dispatcher.ServeDownload(rctx, order, t, deps.Retention)
	if err != nil {
		if errors.Is(err, common.ErrRetryExhausted) {
			return _responses.RetryExhausted()
		}
		rctx.Log.Error("Unexpected error serving download: ", err)
		sentry.CaptureException(err)
		return _responses.InternalServerError("unexpected error serving download")
	}

	if res.State == archives.DispatchGenerating {
		gen := &GeneratingResponse{Status: string(archives.StatusGenerating), SinceTs: res.SinceMillis}
		if res.SinceMillis > 0 {
			gen.ElapsedMillis = util.NowMillis() - res.SinceMillis
		}
		return &_responses.AcceptedResponse{Payload: gen}
	}

	if res.URL != "" {
		return &DownloadLinkResponse{
			Status:    string(archives.StatusReady),
			Url:       res.URL,
			ExpiresTs: res.ExpiresAt.UnixMilli(),
		}
	}

	return &_responses.DownloadResponse{
		ContentType: "application/zip",
		Filename:    res.Filename,
		SizeBytes:   res.Size,
		Data:        newServeCompleteCloser(rctx, order, t, res.Stream, res.Size),
	}
}

// serveCompleteCloser runs the retention policy once the client has read the
// whole artifact. A partial transfer leaves the zip in place so the client
// can come back for it.
type serveCompleteCloser struct {
	ctx    rcontext.RequestContext
	order  *database.DbOrder
	t      archives.ArtifactType
	inner  io.ReadCloser
	want   int64
	copied int64
}

func newServeCompleteCloser(ctx rcontext.RequestContext, order *database.DbOrder, t archives.ArtifactType, inner io.ReadCloser, size int64) io.ReadCloser {
	return &serveCompleteCloser{ctx: ctx, order: order, t: t, inner: inner, want: size}
}

func (c *serveCompleteCloser) Read(p []byte) (int, error) {
	n, err := c.inner.Read(p)
	c.copied += int64(n)
	return n, err
}

func (c *serveCompleteCloser) Close() error {
	err := c.inner.Close()
	if c.copied >= c.want {
		if rerr := deps.Retention.AfterServe(c.ctx, c.order, c.t); rerr != nil {
			c.ctx.Log.Error("Failed to apply retention policy after serve: ", rerr)
			sentry.CaptureException(rerr)
		}
	}
	return err
}

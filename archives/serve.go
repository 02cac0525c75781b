package archives

import (
	"fmt"
	"io"
	"time"

	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
)

// ServeResult is what a download request resolves to. Exactly one of the
// ready shapes is populated: a presigned URL when the artifact will outlive
// the serve, or a stream when disposable retention deletes it right after.
type ServeResult struct {
	State       DispatchState
	SinceMillis int64

	URL       string
	ExpiresAt time.Time

	Stream   io.ReadCloser
	Size     int64
	Filename string
}

// ServeDownload runs the dispatch algorithm and, on a cache hit, resolves the
// artifact for serving. Disposable artifacts are streamed through the service
// so the completed download is observable and the delete can follow it;
// persistent ones are handed out as a time-limited signed reference.
func (d *Dispatcher) ServeDownload(ctx rcontext.RequestContext, order *database.DbOrder, t ArtifactType, retention *RetentionPolicy) (*ServeResult, error) {
	state, err := d.Ensure(ctx, order, t)
	if err != nil {
		return nil, err
	}
	if state == DispatchGenerating {
		bs := order.BuildState(string(t))
		return &ServeResult{State: DispatchGenerating, SinceMillis: bs.GeneratingSince}, nil
	}

	key := ArtifactKey(order.GalleryId, order.OrderId, t)
	filename := fmt.Sprintf("%s-%s.zip", order.OrderId, t)

	mode, err := retention.Mode(ctx, order.GalleryId)
	if err != nil {
		return nil, err
	}

	if mode == RetentionPersistent {
		url, expiresAt, err := d.objects.PresignGet(ctx, key, filename)
		if err != nil {
			return nil, err
		}
		return &ServeResult{State: DispatchReady, URL: url, ExpiresAt: expiresAt, Filename: filename}, nil
	}

	stream, size, err := d.objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &ServeResult{State: DispatchReady, Stream: stream, Size: size, Filename: filename}, nil
}

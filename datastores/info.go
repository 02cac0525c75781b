package datastores

import (
	"errors"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/pixelvault/gallery-repo/archives"
	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func isNotFound(err error) bool {
	var merr minio.ErrorResponse
	if errors.As(err, &merr) {
		return merr.Code == "NoSuchKey" || merr.StatusCode == http.StatusNotFound
	}
	return false
}

func (s *S3Store) Stat(ctx rcontext.RequestContext, key string) (*archives.ObjectInfo, error) {
	metrics.S3Operations.With(prometheus.Labels{"operation": "StatObject"}).Inc()
	info, err := s.client.StatObject(ctx.Context, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrObjectNotFound
		}
		return nil, err
	}
	return &archives.ObjectInfo{
		Key:          key,
		Size:         info.Size,
		Etag:         info.ETag,
		LastModified: info.LastModified.UnixMilli(),
		FilesHash:    info.UserMetadata["Files-Hash"],
	}, nil
}

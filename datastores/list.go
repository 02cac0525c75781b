package datastores

import (
	"github.com/minio/minio-go/v7"
	"github.com/pixelvault/gallery-repo/archives"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func (s *S3Store) ListPrefix(ctx rcontext.RequestContext, prefix string) ([]archives.FileDescriptor, error) {
	metrics.S3Operations.With(prometheus.Labels{"operation": "ListObjects"}).Inc()

	files := make([]archives.FileDescriptor, 0)
	objects := s.client.ListObjects(ctx.Context, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Size == 0 && obj.Key[len(obj.Key)-1] == '/' {
			continue // directory marker
		}
		files = append(files, archives.FileDescriptor{
			Key:          obj.Key,
			Etag:         obj.ETag,
			Size:         obj.Size,
			LastModified: obj.LastModified.UnixMilli(),
		})
	}
	return files, nil
}

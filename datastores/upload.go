package datastores

import (
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func (s *S3Store) Put(ctx rcontext.RequestContext, key string, r io.Reader, size int64, contentType string, metadata map[string]string) error {
	metrics.S3Operations.With(prometheus.Labels{"operation": "PutObject"}).Inc()
	info, err := s.client.PutObject(ctx.Context, s.bucket, key, r, size, minio.PutObjectOptions{
		StorageClass: s.storageClass,
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return err
	}
	if info.Size != size {
		if rerr := s.Delete(ctx, key); rerr != nil {
			ctx.Log.Warn("Error deleting upload (delete attempted due to persistence error): ", rerr)
		}
		return fmt.Errorf("upload size mismatch: expected %d got %d bytes", size, info.Size)
	}

	// A fresh object invalidates any URL pointing at the old bytes
	s.ForgetPresigned(key)
	return nil
}

package datastores

import (
	"github.com/minio/minio-go/v7"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func (s *S3Store) Delete(ctx rcontext.RequestContext, key string) error {
	metrics.S3Operations.With(prometheus.Labels{"operation": "RemoveObject"}).Inc()
	err := s.client.RemoveObject(ctx.Context, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	s.ForgetPresigned(key)
	return nil
}

package datastores

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func (s *S3Store) Get(ctx rcontext.RequestContext, key string) (io.ReadCloser, int64, error) {
	metrics.S3Operations.With(prometheus.Labels{"operation": "GetObject"}).Inc()
	obj, err := s.client.GetObject(ctx.Context, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}

	// GetObject is lazy - Stat forces the request so absence surfaces here
	// rather than on first read.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, 0, common.ErrObjectNotFound
		}
		return nil, 0, err
	}
	return obj, info.Size, nil
}

type cachedPresign struct {
	url       string
	expiresAt time.Time
}

func (s *S3Store) PresignGet(ctx rcontext.RequestContext, key string, downloadName string) (string, time.Time, error) {
	if val, ok := s.urlCache.Get(key); ok {
		metrics.CacheHits.With(prometheus.Labels{"cache": "presigned_urls"}).Inc()
		cached := val.(cachedPresign)
		return cached.url, cached.expiresAt, nil
	}
	metrics.CacheMisses.With(prometheus.Labels{"cache": "presigned_urls"}).Inc()

	params := make(url.Values)
	if downloadName != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}

	metrics.S3Operations.With(prometheus.Labels{"operation": "PresignedGetObject"}).Inc()
	presigned, err := s.client.PresignedGetObject(ctx.Context, s.bucket, key, s.presignExpiry, params)
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(s.presignExpiry)
	s.urlCache.SetDefault(key, cachedPresign{url: presigned.String(), expiresAt: expiresAt})
	return presigned.String(), expiresAt, nil
}

// ForgetPresigned drops any cached URL for the key. Called when the artifact
// behind it is deleted.
func (s *S3Store) ForgetPresigned(key string) {
	s.urlCache.Delete(key)
}

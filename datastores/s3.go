package datastores

import (
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/patrickmn/go-cache"
	"github.com/pixelvault/gallery-repo/common/config"
)

// S3Store is the object store for gallery sources and built artifacts. It
// satisfies archives.ObjectStore.
type S3Store struct {
	client       *minio.Client
	bucket       string
	storageClass string

	presignExpiry time.Duration
	urlCache      *cache.Cache
}

func NewS3Store(cfg config.ObjectStoreConfig) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Region: cfg.Region,
		Secure: cfg.Ssl,
		Creds:  credentials.NewStaticV4(cfg.AccessKeyId, cfg.AccessSecret, ""),
	})
	if err != nil {
		return nil, err
	}

	storageClass := cfg.StorageClass
	if storageClass == "" {
		storageClass = "STANDARD"
	}

	cacheFor := time.Duration(cfg.PresignCacheSeconds) * time.Second
	if cacheFor <= 0 || cacheFor > time.Duration(cfg.PresignExpirySeconds)*time.Second {
		// Never cache a URL longer than it stays valid
		cacheFor = time.Duration(cfg.PresignExpirySeconds) * time.Second / 2
	}

	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		storageClass:  storageClass,
		presignExpiry: time.Duration(cfg.PresignExpirySeconds) * time.Second,
		urlCache:      cache.New(cacheFor, 2*cacheFor),
	}, nil
}

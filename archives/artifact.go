package archives

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
)

type ArtifactType string

const (
	ArtifactSelection ArtifactType = "selection"
	ArtifactFinal     ArtifactType = "final"
)

func ParseArtifactType(s string) (ArtifactType, bool) {
	switch s {
	case string(ArtifactSelection):
		return ArtifactSelection, true
	case string(ArtifactFinal):
		return ArtifactFinal, true
	default:
		return "", false
	}
}

// ArtifactKey is the deterministic storage key for an order's zip. Cache
// lookups derive it from the identifiers alone - there is no index.
func ArtifactKey(galleryId string, orderId string, t ArtifactType) string {
	if t == ArtifactFinal {
		return fmt.Sprintf("galleries/%s/final-zip/%s.zip", galleryId, orderId)
	}
	return fmt.Sprintf("galleries/%s/zips/%s.zip", galleryId, orderId)
}

func OriginalsPrefix(galleryId string) string {
	return fmt.Sprintf("galleries/%s/originals/", galleryId)
}

func FinalsPrefix(galleryId string, orderId string) string {
	return fmt.Sprintf("galleries/%s/finals/%s/", galleryId, orderId)
}

// FileDescriptor identifies one source object at one point in time. Only ever
// folded into a content hash, never persisted.
type FileDescriptor struct {
	Key          string
	Etag         string
	Size         int64
	LastModified int64 // millis
}

func (f FileDescriptor) Filename() string {
	return path.Base(f.Key)
}

// ObjectInfo describes a stored artifact object.
type ObjectInfo struct {
	Key          string
	Size         int64
	Etag         string
	LastModified int64
	FilesHash    string // content fingerprint recorded at build time
}

// ObjectStore is the blob storage the coordinator reads sources from and
// writes artifacts to. Implementations return common.ErrObjectNotFound from
// Stat and Get when the key is absent.
type ObjectStore interface {
	ListPrefix(ctx rcontext.RequestContext, prefix string) ([]FileDescriptor, error)
	Stat(ctx rcontext.RequestContext, key string) (*ObjectInfo, error)
	Get(ctx rcontext.RequestContext, key string) (io.ReadCloser, int64, error)
	Put(ctx rcontext.RequestContext, key string, r io.Reader, size int64, contentType string, metadata map[string]string) error
	Delete(ctx rcontext.RequestContext, key string) error
	PresignGet(ctx rcontext.RequestContext, key string, downloadName string) (string, time.Time, error)
}

// OrderStore is the order record surface the coordinator mutates. Backed by
// the DynamoDB table accessors in practice; tests use an in-memory fake.
type OrderStore interface {
	GetOrder(ctx rcontext.RequestContext, galleryId string, orderId string) (*database.DbOrder, error)
	TryAcquireBuildLock(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, nowMillis int64, filesHash string) error
	ReleaseBuildLock(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) error
	ReclaimBuildLock(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, cutoffMillis int64) (bool, error)
	SetArtifact(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, zipKey string, filesHash string) error
	ClearArtifact(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) error
	RecordBuildError(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, record database.ErrorRecord) (int, error)
	SetFinalBuildError(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, record database.ErrorRecord) error
	ResetBuildErrors(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) error
	IncrementRetryCount(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) (int, error)
}

// AddonStore answers whether a gallery has purchased persistent retention.
type AddonStore interface {
	HasBackupStorage(ctx rcontext.RequestContext, galleryId string) (bool, error)
}

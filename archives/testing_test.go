package archives

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/config"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/pool"
	"github.com/pixelvault/gallery-repo/util"
)

func testContext() rcontext.RequestContext {
	c := config.NewDefaultMainConfig()
	config.AddTestConfig(&c)
	return rcontext.Initial()
}

func testQueue(t *testing.T) *pool.Queue {
	q, err := pool.NewQueue(2, "test-zips")
	if err != nil {
		t.Fatal(err)
	}
	return q
}

// waitUntil polls for an asynchronous build result.
func waitUntil(t *testing.T, desc string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for: " + desc)
}

type memObject struct {
	data         []byte
	etag         string
	lastModified int64
	metadata     map[string]string
}

// memObjects is an in-memory ObjectStore with the same not-found semantics
// as the S3 implementation.
type memObjects struct {
	mu        sync.Mutex
	objects   map[string]*memObject
	getErrors map[string]error
	puts      int
	etagSeq   int
}

func newMemObjects() *memObjects {
	return &memObjects{
		objects:   make(map[string]*memObject),
		getErrors: make(map[string]error),
	}
}

func (s *memObjects) add(key string, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.etagSeq++
	s.objects[key] = &memObject{
		data:         []byte(content),
		etag:         fmt.Sprintf("etag-%d", s.etagSeq),
		lastModified: util.NowMillis(),
	}
}

func (s *memObjects) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
}

func (s *memObjects) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *memObjects) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *memObjects) ListPrefix(ctx rcontext.RequestContext, prefix string) ([]FileDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]FileDescriptor, 0)
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			files = append(files, FileDescriptor{
				Key:          key,
				Etag:         obj.etag,
				Size:         int64(len(obj.data)),
				LastModified: obj.lastModified,
			})
		}
	}
	return files, nil
}

func (s *memObjects) Stat(ctx rcontext.RequestContext, key string) (*ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, common.ErrObjectNotFound
	}
	filesHash := ""
	if obj.metadata != nil {
		filesHash = obj.metadata["Files-Hash"]
	}
	return &ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		Etag:         obj.etag,
		LastModified: obj.lastModified,
		FilesHash:    filesHash,
	}, nil
}

func (s *memObjects) Get(ctx rcontext.RequestContext, key string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.getErrors[key]; ok {
		return nil, 0, err
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, 0, common.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), int64(len(obj.data)), nil
}

func (s *memObjects) Put(ctx rcontext.RequestContext, key string, r io.Reader, size int64, contentType string, metadata map[string]string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.etagSeq++
	s.puts++
	s.objects[key] = &memObject{
		data:         data,
		etag:         fmt.Sprintf("etag-%d", s.etagSeq),
		lastModified: util.NowMillis(),
		metadata:     metadata,
	}
	return nil
}

func (s *memObjects) Delete(ctx rcontext.RequestContext, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memObjects) PresignGet(ctx rcontext.RequestContext, key string, downloadName string) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", time.Time{}, common.ErrObjectNotFound
	}
	return "https://signed.example.org/" + key, time.Now().Add(15 * time.Minute), nil
}

// memOrders is an in-memory OrderStore with the conditional-update semantics
// of the DynamoDB table accessors.
type memOrders struct {
	mu     sync.Mutex
	orders map[string]*database.DbOrder
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*database.DbOrder)}
}

func orderRef(galleryId string, orderId string) string {
	return galleryId + "/" + orderId
}

func (s *memOrders) add(order *database.DbOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[orderRef(order.GalleryId, order.OrderId)] = order
}

func (s *memOrders) snapshot(galleryId string, orderId string) *database.DbOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (s *memOrders) GetOrder(ctx rcontext.RequestContext, galleryId string, orderId string) (*database.DbOrder, error) {
	o := s.snapshot(galleryId, orderId)
	if o == nil {
		return nil, common.ErrOrderNotFound
	}
	return o, nil
}

func (s *memOrders) TryAcquireBuildLock(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, nowMillis int64, filesHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return common.ErrBuildInProgress
	}
	if artifactType == "final" {
		if o.FinalGenerating {
			return common.ErrBuildInProgress
		}
		o.FinalGenerating = true
		o.FinalGeneratingSince = nowMillis
		o.FinalFilesHash = filesHash
		return nil
	}
	if o.SelectionGenerating {
		return common.ErrBuildInProgress
	}
	o.SelectionGenerating = true
	o.SelectionGeneratingSince = nowMillis
	o.SelectionFilesHash = filesHash
	return nil
}

func (s *memOrders) ReleaseBuildLock(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return common.ErrOrderNotFound
	}
	if artifactType == "final" {
		o.FinalGenerating = false
		o.FinalGeneratingSince = 0
	} else {
		o.SelectionGenerating = false
		o.SelectionGeneratingSince = 0
	}
	return nil
}

func (s *memOrders) ReclaimBuildLock(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, cutoffMillis int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return false, common.ErrOrderNotFound
	}
	if artifactType == "final" {
		if !o.FinalGenerating || o.FinalGeneratingSince > cutoffMillis {
			return false, nil
		}
		o.FinalGenerating = false
		o.FinalGeneratingSince = 0
		return true, nil
	}
	if !o.SelectionGenerating || o.SelectionGeneratingSince > cutoffMillis {
		return false, nil
	}
	o.SelectionGenerating = false
	o.SelectionGeneratingSince = 0
	return true, nil
}

func (s *memOrders) SetArtifact(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, zipKey string, filesHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return common.ErrOrderNotFound
	}
	if artifactType == "final" {
		o.FinalZipKey = zipKey
		o.FinalFilesHash = filesHash
	} else {
		o.SelectionZipKey = zipKey
		o.SelectionFilesHash = filesHash
	}
	return nil
}

func (s *memOrders) ClearArtifact(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return common.ErrOrderNotFound
	}
	if artifactType == "final" {
		o.FinalZipKey = ""
		o.FinalFilesHash = ""
	} else {
		o.SelectionZipKey = ""
		o.SelectionFilesHash = ""
	}
	return nil
}

func (s *memOrders) RecordBuildError(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, record database.ErrorRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return 0, common.ErrOrderNotFound
	}
	if artifactType == "final" {
		o.FinalErrorDetails = append(o.FinalErrorDetails, record)
		o.FinalErrorAttempts++
		return o.FinalErrorAttempts, nil
	}
	o.SelectionErrorDetails = append(o.SelectionErrorDetails, record)
	o.SelectionErrorAttempts++
	return o.SelectionErrorAttempts, nil
}

func (s *memOrders) SetFinalBuildError(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string, record database.ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return common.ErrOrderNotFound
	}
	if artifactType == "final" {
		o.FinalErrorFinal = &record
	} else {
		o.SelectionErrorFinal = &record
	}
	return nil
}

func (s *memOrders) ResetBuildErrors(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return common.ErrOrderNotFound
	}
	if artifactType == "final" {
		o.FinalErrorAttempts = 0
		o.FinalErrorDetails = nil
		o.FinalErrorFinal = nil
	} else {
		o.SelectionErrorAttempts = 0
		o.SelectionErrorDetails = nil
		o.SelectionErrorFinal = nil
	}
	return nil
}

func (s *memOrders) IncrementRetryCount(ctx rcontext.RequestContext, galleryId string, orderId string, artifactType string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderRef(galleryId, orderId)]
	if !ok {
		return 0, common.ErrOrderNotFound
	}
	if artifactType == "final" {
		o.FinalRetryCount++
		return o.FinalRetryCount, nil
	}
	o.SelectionRetryCount++
	return o.SelectionRetryCount, nil
}

type memAddons struct {
	mu       sync.Mutex
	backedUp map[string]bool
}

func newMemAddons() *memAddons {
	return &memAddons{backedUp: make(map[string]bool)}
}

func (s *memAddons) enable(galleryId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backedUp[galleryId] = true
}

func (s *memAddons) HasBackupStorage(ctx rcontext.RequestContext, galleryId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backedUp[galleryId], nil
}

// coordinator bundles a fully wired build stack over the in-memory stores.
type coordinator struct {
	objects    *memObjects
	orders     *memOrders
	addons     *memAddons
	locks      *LockManager
	builder    *Builder
	dispatcher *Dispatcher
	reporter   *StatusReporter
	retention  *RetentionPolicy
}

func newCoordinator(t *testing.T, buildTimeout time.Duration) *coordinator {
	objects := newMemObjects()
	orders := newMemOrders()
	addons := newMemAddons()
	locks := NewLockManager(orders, buildTimeout)
	builder := NewBuilder(objects, orders, locks)
	dispatcher := NewDispatcher(objects, orders, locks, testQueue(t), builder)
	return &coordinator{
		objects:    objects,
		orders:     orders,
		addons:     addons,
		locks:      locks,
		builder:    builder,
		dispatcher: dispatcher,
		reporter:   NewStatusReporter(objects, locks),
		retention:  NewRetentionPolicy(objects, orders, addons),
	}
}

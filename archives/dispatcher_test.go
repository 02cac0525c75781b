package archives

import (
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectionOrder() *database.DbOrder {
	return &database.DbOrder{
		GalleryId:      "g1",
		OrderId:        "o1",
		DeliveryStatus: "CLIENT_APPROVED",
		SelectedKeys:   []string{"a.jpg", "b.jpg"},
	}
}

func (s *memObjects) data(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil
	}
	return obj.data
}

func zipEntryNames(t *testing.T, data []byte) []string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, 0)
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestEnsureBuildsAndCaches(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	co.objects.add("galleries/g1/originals/a.jpg", "photo a contents")
	co.objects.add("galleries/g1/originals/b.jpg", "photo b contents")
	co.orders.add(selectionOrder())

	order := co.orders.snapshot("g1", "o1")
	state, err := co.dispatcher.Ensure(ctx, order, ArtifactSelection)
	require.NoError(t, err)
	assert.Equal(t, DispatchGenerating, state)

	key := ArtifactKey("g1", "o1", ArtifactSelection)
	waitUntil(t, "selection zip built", func() bool {
		return co.objects.has(key) && !co.orders.snapshot("g1", "o1").SelectionGenerating
	})
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, zipEntryNames(t, co.objects.data(key)))
	assert.Equal(t, key, co.orders.snapshot("g1", "o1").SelectionZipKey)

	// Unchanged source set: the second request must be a cache hit, not a
	// rebuild.
	puts := co.objects.putCount()
	state, err = co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	assert.Equal(t, DispatchReady, state)
	assert.Equal(t, puts, co.objects.putCount())
}

func TestEnsureRebuildsOnSourceChange(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	co.objects.add("galleries/g1/originals/a.jpg", "photo a contents")
	co.objects.add("galleries/g1/originals/b.jpg", "photo b contents")
	co.orders.add(selectionOrder())

	_, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	key := ArtifactKey("g1", "o1", ArtifactSelection)
	waitUntil(t, "first build", func() bool {
		return co.objects.has(key) && !co.orders.snapshot("g1", "o1").SelectionGenerating
	})
	puts := co.objects.putCount()

	// Replacing a source changes its etag, which must invalidate the cache.
	co.objects.add("galleries/g1/originals/a.jpg", "retouched photo a")

	state, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	assert.Equal(t, DispatchGenerating, state)
	waitUntil(t, "rebuild", func() bool {
		return co.objects.putCount() > puts && !co.orders.snapshot("g1", "o1").SelectionGenerating
	})
}

func TestEnsureRespectsHeldLock(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	co.objects.add("galleries/g1/originals/a.jpg", "photo a contents")
	order := selectionOrder()
	order.SelectionGenerating = true
	order.SelectionGeneratingSince = util.NowMillis()
	co.orders.add(order)

	state, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	assert.Equal(t, DispatchGenerating, state)
	assert.Equal(t, 0, co.objects.putCount())
}

func TestEnsureReclaimsStaleLockAndRebuilds(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	co.objects.add("galleries/g1/originals/a.jpg", "photo a contents")
	order := selectionOrder()
	order.SelectedKeys = []string{"a.jpg"}
	order.SelectionGenerating = true
	order.SelectionGeneratingSince = util.NowMillis() - (30 * time.Minute).Milliseconds()
	co.orders.add(order)

	state, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	assert.Equal(t, DispatchGenerating, state)

	key := ArtifactKey("g1", "o1", ArtifactSelection)
	waitUntil(t, "build after reclaim", func() bool {
		return co.objects.has(key) && !co.orders.snapshot("g1", "o1").SelectionGenerating
	})
}

func TestBuilderSkipsMissingSelectedFile(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	// b.jpg is selected but was deleted from storage before the build ran.
	co.objects.add("galleries/g1/originals/a.jpg", "photo a contents")
	co.orders.add(selectionOrder())

	_, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)

	key := ArtifactKey("g1", "o1", ArtifactSelection)
	waitUntil(t, "partial build", func() bool {
		return co.objects.has(key) && !co.orders.snapshot("g1", "o1").SelectionGenerating
	})
	assert.Equal(t, []string{"a.jpg"}, zipEntryNames(t, co.objects.data(key)))
	assert.Equal(t, 0, co.orders.snapshot("g1", "o1").SelectionErrorAttempts)
}

func TestEmptySourceSetFailsBuild(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	co.orders.add(selectionOrder())

	state, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	assert.Equal(t, DispatchGenerating, state)

	waitUntil(t, "failure recorded", func() bool {
		o := co.orders.snapshot("g1", "o1")
		return o.SelectionErrorAttempts == 1 && !o.SelectionGenerating
	})
	assert.False(t, co.objects.has(ArtifactKey("g1", "o1", ArtifactSelection)))
	assert.Nil(t, co.orders.snapshot("g1", "o1").SelectionErrorFinal)
}

func TestRetryBudgetExhaustion(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	co.orders.add(selectionOrder())

	// First failure is retryable.
	_, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	waitUntil(t, "first failure", func() bool {
		o := co.orders.snapshot("g1", "o1")
		return o.SelectionErrorAttempts == 1 && !o.SelectionGenerating
	})

	st, err := co.reporter.Status(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection, true)
	require.NoError(t, err)
	assert.Equal(t, StatusError, st.Status)
	assert.True(t, st.CanRetry)

	// Second failure is terminal.
	_, err = co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	waitUntil(t, "terminal failure", func() bool {
		o := co.orders.snapshot("g1", "o1")
		return o.SelectionErrorFinal != nil && !o.SelectionGenerating
	})

	st, err = co.reporter.Status(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection, true)
	require.NoError(t, err)
	assert.Equal(t, StatusError, st.Status)
	assert.False(t, st.CanRetry)
	assert.Equal(t, 2, st.Attempts)

	// Nothing more gets dispatched until an explicit reset.
	_, err = co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	assert.ErrorIs(t, err, common.ErrRetryExhausted)

	require.NoError(t, co.orders.ResetBuildErrors(ctx, "g1", "o1", "selection"))
	co.objects.add("galleries/g1/originals/a.jpg", "photo a contents")
	state, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	assert.Equal(t, DispatchGenerating, state)
	waitUntil(t, "build after reset", func() bool {
		return co.objects.has(ArtifactKey("g1", "o1", ArtifactSelection))
	})
}

func TestFinalArtifactUsesFinalsPrefix(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	co.objects.add("galleries/g1/finals/o1/edit-01.jpg", "final one")
	co.objects.add("galleries/g1/finals/o1/edit-02.jpg", "final two")
	co.objects.add("galleries/g1/originals/a.jpg", "should not be included")
	order := selectionOrder()
	order.DeliveryStatus = "DELIVERED"
	co.orders.add(order)

	_, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactFinal)
	require.NoError(t, err)

	key := ArtifactKey("g1", "o1", ArtifactFinal)
	waitUntil(t, "final build", func() bool {
		return co.objects.has(key) && !co.orders.snapshot("g1", "o1").FinalGenerating
	})
	assert.ElementsMatch(t, []string{"edit-01.jpg", "edit-02.jpg"}, zipEntryNames(t, co.objects.data(key)))
}

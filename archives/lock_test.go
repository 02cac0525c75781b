package archives

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/util"
	"github.com/stretchr/testify/assert"
)

func TestTryAcquireExactlyOneWinner(t *testing.T) {
	ctx := testContext()
	orders := newMemOrders()
	orders.add(&database.DbOrder{GalleryId: "g1", OrderId: "o1"})
	locks := NewLockManager(orders, 15*time.Minute)

	wins := 0
	losses := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locks.TryAcquire(ctx, "g1", "o1", ArtifactSelection, "hash1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, common.ErrBuildInProgress) {
				losses++
			} else {
				t.Error("unexpected acquire error: ", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 31, losses)
	assert.True(t, orders.snapshot("g1", "o1").SelectionGenerating)
}

func TestLocksPerArtifactTypeAreIndependent(t *testing.T) {
	ctx := testContext()
	orders := newMemOrders()
	orders.add(&database.DbOrder{GalleryId: "g1", OrderId: "o1"})
	locks := NewLockManager(orders, 15*time.Minute)

	assert.NoError(t, locks.TryAcquire(ctx, "g1", "o1", ArtifactSelection, "hash1"))
	assert.NoError(t, locks.TryAcquire(ctx, "g1", "o1", ArtifactFinal, "hash2"))
	assert.ErrorIs(t, locks.TryAcquire(ctx, "g1", "o1", ArtifactSelection, "hash1"), common.ErrBuildInProgress)
}

func TestReleaseReopensWindow(t *testing.T) {
	ctx := testContext()
	orders := newMemOrders()
	orders.add(&database.DbOrder{GalleryId: "g1", OrderId: "o1"})
	locks := NewLockManager(orders, 15*time.Minute)

	assert.NoError(t, locks.TryAcquire(ctx, "g1", "o1", ArtifactSelection, "hash1"))
	assert.NoError(t, locks.Release(ctx, "g1", "o1", ArtifactSelection))
	assert.NoError(t, locks.TryAcquire(ctx, "g1", "o1", ArtifactSelection, "hash1"))
}

func TestReclaimStaleLock(t *testing.T) {
	ctx := testContext()
	orders := newMemOrders()
	// Locked 20 minutes ago with a 16 minute staleness horizon.
	orders.add(&database.DbOrder{
		GalleryId:                "g1",
		OrderId:                  "o1",
		SelectionGenerating:      true,
		SelectionGeneratingSince: util.NowMillis() - (20 * time.Minute).Milliseconds(),
	})
	locks := NewLockManager(orders, 15*time.Minute)

	state := orders.snapshot("g1", "o1").BuildState("selection")
	assert.True(t, locks.IsStale(state))

	reclaimed, err := locks.ReclaimIfStale(ctx, "g1", "o1", ArtifactSelection, state)
	assert.NoError(t, err)
	assert.True(t, reclaimed)
	assert.False(t, orders.snapshot("g1", "o1").SelectionGenerating)

	// After the reclaim exactly one new acquire may succeed.
	assert.NoError(t, locks.TryAcquire(ctx, "g1", "o1", ArtifactSelection, "hash1"))
	assert.ErrorIs(t, locks.TryAcquire(ctx, "g1", "o1", ArtifactSelection, "hash1"), common.ErrBuildInProgress)
}

func TestReclaimLeavesFreshLockAlone(t *testing.T) {
	ctx := testContext()
	orders := newMemOrders()
	orders.add(&database.DbOrder{
		GalleryId:                "g1",
		OrderId:                  "o1",
		SelectionGenerating:      true,
		SelectionGeneratingSince: util.NowMillis() - (5 * time.Minute).Milliseconds(),
	})
	locks := NewLockManager(orders, 15*time.Minute)

	state := orders.snapshot("g1", "o1").BuildState("selection")
	assert.False(t, locks.IsStale(state))

	reclaimed, err := locks.ReclaimIfStale(ctx, "g1", "o1", ArtifactSelection, state)
	assert.NoError(t, err)
	assert.False(t, reclaimed)
	assert.True(t, orders.snapshot("g1", "o1").SelectionGenerating)
}

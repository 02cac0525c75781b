package archives

import (
	"testing"
	"time"

	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusNotStarted(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	co.orders.add(selectionOrder())

	st, err := co.reporter.Status(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection, false)
	require.NoError(t, err)
	assert.Equal(t, StatusNotStarted, st.Status)
	assert.False(t, st.ZipExists)
}

func TestStatusGenerating(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	order := selectionOrder()
	order.SelectionGenerating = true
	order.SelectionGeneratingSince = util.NowMillis() - (2 * time.Minute).Milliseconds()
	co.orders.add(order)

	st, err := co.reporter.Status(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection, false)
	require.NoError(t, err)
	assert.Equal(t, StatusGenerating, st.Status)
	assert.Equal(t, order.SelectionGeneratingSince, st.SinceMillis)
}

func TestStatusStaleGeneratingBecomesRetryableError(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	order := selectionOrder()
	order.SelectionGenerating = true
	order.SelectionGeneratingSince = util.NowMillis() - (20 * time.Minute).Milliseconds()
	co.orders.add(order)

	st, err := co.reporter.Status(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection, false)
	require.NoError(t, err)
	assert.Equal(t, StatusError, st.Status)
	assert.True(t, st.CanRetry)

	// The check itself reclaims the lock so the next dispatch can proceed.
	assert.False(t, co.orders.snapshot("g1", "o1").SelectionGenerating)
}

func TestStatusReadyWhenHashMatches(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	co.objects.add("galleries/g1/originals/a.jpg", "photo a contents")
	co.objects.add("galleries/g1/originals/b.jpg", "photo b contents")
	co.orders.add(selectionOrder())

	_, err := co.dispatcher.Ensure(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection)
	require.NoError(t, err)
	waitUntil(t, "build", func() bool {
		return co.objects.has(ArtifactKey("g1", "o1", ArtifactSelection)) && !co.orders.snapshot("g1", "o1").SelectionGenerating
	})

	st, err := co.reporter.Status(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection, false)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, st.Status)
	assert.True(t, st.ZipExists)
	assert.True(t, st.ZipSize > 0)

	// A source change flips the same artifact back to not started: the zip
	// exists but no longer reflects the source set.
	co.objects.add("galleries/g1/originals/a.jpg", "retouched")
	st, err = co.reporter.Status(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection, false)
	require.NoError(t, err)
	assert.Equal(t, StatusNotStarted, st.Status)
	assert.True(t, st.ZipExists)
}

func TestStatusErrorDetailVisibility(t *testing.T) {
	ctx := testContext()
	co := newCoordinator(t, 15*time.Minute)
	order := selectionOrder()
	record := database.ErrorRecord{Message: "source bucket unreachable", Timestamp: util.NowMillis()}
	order.SelectionErrorAttempts = 2
	order.SelectionErrorDetails = []database.ErrorRecord{record, record}
	order.SelectionErrorFinal = &record
	co.orders.add(order)

	// Guests get a generic message and no history.
	st, err := co.reporter.Status(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection, false)
	require.NoError(t, err)
	assert.Equal(t, StatusError, st.Status)
	assert.False(t, st.CanRetry)
	assert.Empty(t, st.Details)
	assert.NotContains(t, st.Message, "bucket")

	// The owner sees everything.
	st, err = co.reporter.Status(ctx, co.orders.snapshot("g1", "o1"), ArtifactSelection, true)
	require.NoError(t, err)
	assert.Equal(t, "source bucket unreachable", st.Message)
	assert.Len(t, st.Details, 2)
}

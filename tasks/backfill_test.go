package tasks

import (
	"testing"

	"github.com/pixelvault/gallery-repo/archives"
	"github.com/pixelvault/gallery-repo/database"
	"github.com/pixelvault/gallery-repo/delivery"
	"github.com/stretchr/testify/assert"
)

func TestQualifyingTypes(t *testing.T) {
	order := func(s delivery.Status) *database.DbOrder {
		return &database.DbOrder{GalleryId: "g1", OrderId: "o1", DeliveryStatus: string(s)}
	}

	assert.Empty(t, qualifyingTypes(order(delivery.StatusDraft)))
	assert.Empty(t, qualifyingTypes(order(delivery.StatusClientSelecting)))
	assert.Empty(t, qualifyingTypes(order(delivery.StatusChangesRequested)))
	assert.Empty(t, qualifyingTypes(order(delivery.StatusCancelled)))

	assert.Equal(t, []archives.ArtifactType{archives.ArtifactSelection}, qualifyingTypes(order(delivery.StatusClientApproved)))
	assert.ElementsMatch(t,
		[]archives.ArtifactType{archives.ArtifactSelection, archives.ArtifactFinal},
		qualifyingTypes(order(delivery.StatusPreparingDelivery)))
	assert.ElementsMatch(t,
		[]archives.ArtifactType{archives.ArtifactSelection, archives.ArtifactFinal},
		qualifyingTypes(order(delivery.StatusDelivered)))
}

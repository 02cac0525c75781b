package database

import (
	"testing"

	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

func TestBuildStateViewsPerType(t *testing.T) {
	order := &DbOrder{
		GalleryId:      "g1",
		OrderId:        "o1",
		DeliveryStatus: "PREPARING_DELIVERY",

		SelectionGenerating:      true,
		SelectionGeneratingSince: 1234,
		SelectionFilesHash:       "aaaa",
		SelectionZipKey:          "galleries/g1/zips/o1.zip",
		SelectionErrorAttempts:   1,
		SelectionRetryCount:      2,

		FinalFilesHash: "bbbb",
		FinalZipKey:    "galleries/g1/final-zip/o1.zip",
	}

	sel := order.BuildState("selection")
	assert.True(t, sel.Generating)
	assert.Equal(t, int64(1234), sel.GeneratingSince)
	assert.Equal(t, "aaaa", sel.FilesHash)
	assert.Equal(t, "galleries/g1/zips/o1.zip", sel.ZipKey)
	assert.Equal(t, 1, sel.ErrorAttempts)
	assert.Equal(t, 2, sel.RetryCount)

	fin := order.BuildState("final")
	assert.False(t, fin.Generating)
	assert.Equal(t, "bbbb", fin.FilesHash)
	assert.Equal(t, "galleries/g1/final-zip/o1.zip", fin.ZipKey)
	assert.Equal(t, 0, fin.ErrorAttempts)
}

func TestAttrNaming(t *testing.T) {
	assert.Equal(t, "selectionGenerating", attr("selection", "Generating"))
	assert.Equal(t, "finalGeneratingSince", attr("final", "GeneratingSince"))
	assert.Equal(t, "selectionErrorAttempts", attr("selection", "ErrorAttempts"))
}

func TestParseIntAttr(t *testing.T) {
	assert.Equal(t, 7, parseIntAttr(&dbtypes.AttributeValueMemberN{Value: "7"}))
	assert.Equal(t, 0, parseIntAttr(&dbtypes.AttributeValueMemberN{Value: "not a number"}))
	assert.Equal(t, 0, parseIntAttr(&dbtypes.AttributeValueMemberS{Value: "7"}))
	assert.Equal(t, 0, parseIntAttr(nil))
}

func TestIsConditionFailed(t *testing.T) {
	assert.True(t, isConditionFailed(&dbtypes.ConditionalCheckFailedException{}))
	assert.False(t, isConditionFailed(assert.AnError))
	assert.False(t, isConditionFailed(nil))
}

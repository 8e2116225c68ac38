package access

import (
	"testing"

	"github.com/learnsy/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCanAccess(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		tier     models.Tier
		kind     Kind
		expected bool
	}{
		{name: "first free video", index: 0, tier: models.TierFree, kind: KindVideo, expected: true},
		{name: "third free video", index: 2, tier: models.TierFree, kind: KindVideo, expected: true},
		{name: "fourth free video", index: 3, tier: models.TierFree, kind: KindVideo, expected: false},
		{name: "second free document", index: 1, tier: models.TierFree, kind: KindDocument, expected: true},
		{name: "third free document", index: 2, tier: models.TierFree, kind: KindDocument, expected: false},
		{name: "ungated on free tier", index: 50, tier: models.TierFree, kind: KindUngated, expected: true},
		{name: "premium video", index: 10, tier: models.TierPremium, kind: KindVideo, expected: true},
		{name: "premium document", index: 10, tier: models.TierPremium, kind: KindDocument, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanAccess(tt.index, tt.tier, tt.kind))
		})
	}
}

func TestCanAccess_Exhaustive(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.Equal(t, i < 3, CanAccess(i, models.TierFree, KindVideo), "video %d", i)
		assert.Equal(t, i < 2, CanAccess(i, models.TierFree, KindDocument), "document %d", i)
		assert.True(t, CanAccess(i, models.TierPremium, KindVideo))
		assert.True(t, CanAccess(i, models.TierPremium, KindDocument))
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindVideo, KindOf(models.MaterialVideo))
	assert.Equal(t, KindDocument, KindOf(models.MaterialPDF))
	assert.Equal(t, KindDocument, KindOf(models.MaterialText))
	for _, mt := range []models.MaterialType{models.MaterialImage, models.MaterialLink, models.MaterialQuiz, models.MaterialAssignment} {
		assert.Equal(t, KindUngated, KindOf(mt), string(mt))
	}
}

func TestIndexesAndLocked(t *testing.T) {
	materials := []models.Material{
		{ID: 1, Type: models.MaterialVideo},
		{ID: 2, Type: models.MaterialPDF},
		{ID: 3, Type: models.MaterialVideo},
		{ID: 4, Type: models.MaterialText},
		{ID: 5, Type: models.MaterialQuiz},
		{ID: 6, Type: models.MaterialPDF},
		{ID: 7, Type: models.MaterialVideo},
		{ID: 8, Type: models.MaterialVideo},
	}

	assert.Equal(t, []int{0, 0, 1, 1, 0, 2, 2, 3}, Indexes(materials))
	assert.Equal(t, []bool{false, false, false, false, false, true, false, true}, Locked(materials, models.TierFree))
	assert.Equal(t, make([]bool, len(materials)), Locked(materials, models.TierPremium))
}

// Package access decides which course materials a free-tier student may open
package access

import "github.com/learnsy/backend/internal/models"

// Kind groups material types that share a free-tier limit
type Kind int

// Kind constants
const (
	KindUngated Kind = iota
	KindVideo
	KindDocument
)

// Free-tier limits per kind
const (
	FreeVideoLimit    = 3
	FreeDocumentLimit = 2
)

// KindOf maps a material type to its gating kind
func KindOf(t models.MaterialType) Kind {
	switch t {
	case models.MaterialVideo:
		return KindVideo
	case models.MaterialPDF, models.MaterialText:
		return KindDocument
	default:
		return KindUngated
	}
}

// Limit returns the number of materials of kind k a free-tier student may open, or -1 when k is not gated
func Limit(k Kind) int {
	switch k {
	case KindVideo:
		return FreeVideoLimit
	case KindDocument:
		return FreeDocumentLimit
	default:
		return -1
	}
}

// CanAccess reports whether the material at the zero-based index among materials of the same kind is open to tier
func CanAccess(index int, tier models.Tier, kind Kind) bool {
	if tier != models.TierFree {
		return true
	}
	limit := Limit(kind)
	if limit < 0 {
		return true
	}
	return index < limit
}

// Indexes returns, for each material, its zero-based index among the materials of the same kind.
// materials must already be in course order.
func Indexes(materials []models.Material) []int {
	counters := make(map[Kind]int)
	indexes := make([]int, len(materials))
	for i, m := range materials {
		kind := KindOf(m.Type)
		indexes[i] = counters[kind]
		counters[kind]++
	}
	return indexes
}

// Locked returns, for each material, whether it is locked for tier
func Locked(materials []models.Material, tier models.Tier) []bool {
	indexes := Indexes(materials)
	locked := make([]bool, len(materials))
	for i, m := range materials {
		locked[i] = !CanAccess(indexes[i], tier, KindOf(m.Type))
	}
	return locked
}

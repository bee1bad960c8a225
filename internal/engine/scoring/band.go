// internal/engine/scoring/band.go
package scoring

// Band is the presentation bucket for a score.
type Band string

const (
	BandExcellent Band = "excellent"
	BandGood      Band = "good"
	BandFair      Band = "fair"
	BandLow       Band = "low"
)

// Band cut points.
const (
	ExcellentThreshold = 85
	GoodThreshold      = 70
	FairThreshold      = 50
)

// BandFor maps a score to its band.
func BandFor(score int) Band {
	switch {
	case score >= ExcellentThreshold:
		return BandExcellent
	case score >= GoodThreshold:
		return BandGood
	case score >= FairThreshold:
		return BandFair
	default:
		return BandLow
	}
}

// Label is the display text, e.g. "Fair Match".
func (b Band) Label() string {
	switch b {
	case BandExcellent:
		return "Excellent Match"
	case BandGood:
		return "Good Match"
	case BandFair:
		return "Fair Match"
	default:
		return "Low Match"
	}
}

// internal/engine/attributes/attributes_test.go
package attributes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// TagSet
// ==========================

func TestNewTagSet_Canonicalizes(t *testing.T) {
	got := NewTagSet(" smaw", "GMAW", "Smaw", "", "  ", "3g")
	assert.Equal(t, TagSet{"SMAW", "GMAW", "3G"}, got)
	assert.Equal(t, 3, got.Len())
	assert.True(t, got.Contains("gmaw "))
	assert.False(t, got.Contains("GTAW"))
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name        string
		required    TagSet
		held        TagSet
		wantMatched TagSet
		wantCount   int
	}{
		{"partial", TagSet{"SMAW", "GTAW"}, TagSet{"SMAW", "GMAW"}, TagSet{"SMAW"}, 1},
		{"all", TagSet{"3G"}, TagSet{"3G", "4G"}, TagSet{"3G"}, 1},
		{"none", TagSet{"CWI"}, nil, TagSet{}, 0},
		{"empty required", nil, TagSet{"SMAW"}, TagSet{}, 0},
		{"case and duplicates", TagSet{"smaw", "SMAW", "gtaw"}, TagSet{" Smaw"}, TagSet{"SMAW"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, count := Overlap(tt.required, tt.held)
			assert.Equal(t, tt.wantMatched, matched)
			assert.Equal(t, tt.wantCount, count)
		})
	}
}

func TestMissing(t *testing.T) {
	assert.Equal(t, TagSet{"GTAW", "FCAW"}, Missing(TagSet{"SMAW", "GTAW", "FCAW"}, TagSet{"SMAW"}))
	assert.Empty(t, Missing(nil, TagSet{"SMAW"}))
}

func TestHasAllHasAny(t *testing.T) {
	held := TagSet{"SMAW", "GMAW"}

	assert.True(t, HasAll(TagSet{"SMAW"}, held))
	assert.False(t, HasAll(TagSet{"SMAW", "GTAW"}, held))
	assert.True(t, HasAll(nil, held), "empty requirement is satisfied")

	assert.True(t, HasAny(TagSet{"GTAW", "GMAW"}, held))
	assert.False(t, HasAny(TagSet{"GTAW"}, held))
	assert.False(t, HasAny(nil, held))
}

func TestVerifiedCertifications(t *testing.T) {
	certs := []Certification{
		{Tag: "CWI", Status: "pending"},
		{Tag: "AWS D1.1", Status: "Verified"},
		{Tag: "osha-10", Status: "verified"},
		{Tag: "CWB", Status: ""},
	}
	assert.Equal(t, TagSet{"AWS D1.1", "OSHA-10"}, VerifiedCertifications(certs))
	assert.Empty(t, VerifiedCertifications(nil))
}

// ==========================
// Pay
// ==========================

func TestParsePayMidpoint(t *testing.T) {
	tests := []struct {
		display string
		want    float64
		ok      bool
	}{
		{"$25 - $32/hr", 28.5 * HoursPerYear, true},
		{"$30 per hour", 30 * HoursPerYear, true},
		{"$60k-$75k", 67500, true},
		{"55,000 a year", 55000, true},
		{"$48,000 - $52,000", 50000, true},
		{"Competitive", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.display, func(t *testing.T) {
			got, ok := ParsePayMidpoint(tt.display)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestPayRange_Midpoint(t *testing.T) {
	mid, ok := PayRange{Min: 20, Max: 30, Period: PeriodHour}.Midpoint()
	assert.True(t, ok)
	assert.InDelta(t, 25*HoursPerYear, mid, 0.001)

	mid, ok = PayRange{Max: 90000}.Midpoint()
	assert.True(t, ok)
	assert.InDelta(t, 90000, mid, 0.001)

	_, ok = PayRange{Min: math.NaN(), Max: -5}.Midpoint()
	assert.False(t, ok)
}

func BenchmarkOverlap(b *testing.B) {
	required := NewTagSet("SMAW", "GTAW", "GMAW", "FCAW", "SAW")
	held := NewTagSet("GMAW", "FCAW", "3G", "4G")
	for i := 0; i < b.N; i++ {
		Overlap(required, held)
	}
}

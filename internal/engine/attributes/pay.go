// internal/engine/attributes/pay.go
package attributes

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// HoursPerYear annualizes hourly pay.
const HoursPerYear = 2080

const (
	PeriodHour = "hour"
	PeriodYear = "year"
)

// PayRange is a numeric pay band. Zero Min and Max mean "not stated".
type PayRange struct {
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Period string  `json:"period,omitempty"`
}

// Midpoint returns the annualized midpoint, or false when nothing usable is set.
func (p PayRange) Midpoint() (float64, bool) {
	lo, hi := finitePositive(p.Min), finitePositive(p.Max)
	var mid float64
	switch {
	case lo > 0 && hi > 0:
		mid = (lo + hi) / 2
	case lo > 0:
		mid = lo
	case hi > 0:
		mid = hi
	default:
		return 0, false
	}
	if strings.EqualFold(p.Period, PeriodHour) {
		mid *= HoursPerYear
	}
	return mid, true
}

func finitePositive(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

var (
	payNumber = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([kK])?`)
	hourly    = regexp.MustCompile(`(?i)(/\s*h\b|\bhr\b|/hr|hour|hourly)`)
)

// ParsePayMidpoint reads display strings such as "$25 - $32/hr",
// "$60k-$75k" or "55,000 a year" and returns the annualized midpoint of the
// first two amounts found. It never panics; false means unparsable.
func ParsePayMidpoint(display string) (float64, bool) {
	matches := payNumber.FindAllStringSubmatch(display, 2)
	if len(matches) == 0 {
		return 0, false
	}

	values := make([]float64, 0, 2)
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			v *= 1000
		}
		values = append(values, v)
	}

	r := PayRange{}
	switch len(values) {
	case 0:
		return 0, false
	case 1:
		r.Min = values[0]
	default:
		r.Min, r.Max = values[0], values[1]
	}
	if hourly.MatchString(display) {
		r.Period = PeriodHour
	}
	return r.Midpoint()
}

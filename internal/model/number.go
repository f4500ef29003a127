package model

import (
	"math"
	"strconv"
	"strings"
)

// Number is a request amount that decodes from a JSON number or a numeric
// string. Anything else decodes to NaN and is rejected by Validate.
type Number float64

func Num(v float64) *Number {
	n := Number(v)
	return &n
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		v = math.NaN()
	}
	*n = Number(v)
	return nil
}

// Valid reports whether n is absent or a finite number.
func (n *Number) Valid() bool {
	return n == nil || !math.IsNaN(float64(*n))
}

// Float returns 0 for a nil n.
func (n *Number) Float() float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

func (n *Number) Float64Ptr() *float64 {
	if n == nil {
		return nil
	}
	v := float64(*n)
	return &v
}

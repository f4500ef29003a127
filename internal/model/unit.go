package model

import "fmt"

type Unit string

const (
	UnitKg      Unit = "kg"
	UnitQuintal Unit = "quintal"
)

// KgPerQuintal is the number of kilograms in one quintal.
const KgPerQuintal = 100

func (u Unit) Valid() bool {
	return u == UnitKg || u == UnitQuintal
}

// ParseUnit accepts "kg" or "quintal"; the empty string resolves to def.
func ParseUnit(s string, def Unit) (Unit, error) {
	if s == "" {
		return def, nil
	}
	u := Unit(s)
	if !u.Valid() {
		return "", fmt.Errorf("invalid unit %q: must be kg or quintal", s)
	}
	return u, nil
}

// Package amount converts weight and rate between kilograms and quintals and
// derives the total amount of a transaction.
package amount

import (
	"errors"
	"fmt"
	"math"

	"github.com/nimasrn/poultry-ledger/internal/model"
)

var (
	ErrNegativeWeight = errors.New("weight cannot be negative")
	ErrNegativeRate   = errors.New("rate cannot be negative")
	ErrNotANumber     = model.ErrNotANumber
)

// Input holds the four values the total is derived from.
type Input struct {
	Weight     float64
	WeightUnit model.Unit
	Rate       float64
	RateUnit   model.Unit
}

// Calculate returns weight*rate. When both units match no conversion is
// applied, even for quintal*quintal. Mixed units are normalised to kg and
// price per kg first.
func Calculate(in Input) (float64, error) {
	if math.IsNaN(in.Weight) || math.IsNaN(in.Rate) || math.IsInf(in.Weight, 0) || math.IsInf(in.Rate, 0) {
		return 0, ErrNotANumber
	}
	if in.Weight < 0 {
		return 0, ErrNegativeWeight
	}
	if in.Rate < 0 {
		return 0, ErrNegativeRate
	}
	if !in.WeightUnit.Valid() {
		return 0, fmt.Errorf("invalid weight unit %q", in.WeightUnit)
	}
	if !in.RateUnit.Valid() {
		return 0, fmt.Errorf("invalid rate unit %q", in.RateUnit)
	}

	if in.WeightUnit == in.RateUnit {
		return in.Weight * in.Rate, nil
	}
	return WeightInKg(in.Weight, in.WeightUnit) * RatePerKg(in.Rate, in.RateUnit), nil
}

func WeightInKg(weight float64, unit model.Unit) float64 {
	if unit == model.UnitQuintal {
		return weight * model.KgPerQuintal
	}
	return weight
}

func RatePerKg(rate float64, unit model.Unit) float64 {
	if unit == model.UnitQuintal {
		return rate / model.KgPerQuintal
	}
	return rate
}

// Merge fills every field the patch leaves nil from the stored transaction.
func Merge(stored *model.Transaction, weight *float64, weightUnit *model.Unit, rate *float64, rateUnit *model.Unit) Input {
	in := Input{
		Weight:     stored.Weight,
		WeightUnit: stored.WeightUnit,
		Rate:       stored.Rate,
		RateUnit:   stored.RateUnit,
	}
	if in.WeightUnit == "" {
		in.WeightUnit = model.UnitKg
	}
	if in.RateUnit == "" {
		in.RateUnit = model.UnitKg
	}
	if weight != nil {
		in.Weight = *weight
	}
	if weightUnit != nil {
		in.WeightUnit = *weightUnit
	}
	if rate != nil {
		in.Rate = *rate
	}
	if rateUnit != nil {
		in.RateUnit = *rateUnit
	}
	return in
}

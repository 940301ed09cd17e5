package production

import "github.com/shopspring/decimal"

// ShiftReport is the summary shown to an operator when the shift ends.
type ShiftReport struct {
	Produced    decimal.Decimal // tons, 4 places
	Pay         decimal.Decimal // 2 places
	IdleMinutes decimal.Decimal // 1 place
}

// GramsPerTon converts the mass unit used throughout the store to tons.
// Product dimensions are in millimetres and DefaultDensity is in g/mm³, so
// shift masses are grams; plan masses are imported in the same unit.
const GramsPerTon = 1_000_000

// Tons converts a stored mass in grams to tons.
func Tons(grams float64) decimal.Decimal {
	return decimal.NewFromFloat(grams).Div(decimal.NewFromInt(GramsPerTon))
}

// BuildShiftReport converts the shift and plan masses (grams) to tons and
// pays the operator's rate proportionally to the share of the plan produced.
// An empty plan pays nothing.
func BuildShiftReport(shiftMass, planMass, rate float64, idleSeconds int64) ShiftReport {
	produced := Tons(shiftMass)
	pay := decimal.Zero
	if planTons := Tons(planMass); planTons.IsPositive() {
		pay = produced.Div(planTons).Mul(decimal.NewFromFloat(rate))
	}
	return ShiftReport{
		Produced:    produced.Round(4),
		Pay:         pay.Round(2),
		IdleMinutes: decimal.NewFromInt(idleSeconds).Div(decimal.NewFromInt(60)).Round(1),
	}
}

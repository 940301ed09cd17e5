package flow

import (
	"math"
	"strconv"

	"github.com/m3rciful/shiftbot/core/telegram/format"
	"github.com/m3rciful/shiftbot/internal/production"
)

// grid lays buttons out perRow to a row.
func grid(buttons []Button, perRow int) [][]Button {
	if perRow <= 0 {
		perRow = 1
	}
	rows := make([][]Button, 0, (len(buttons)+perRow-1)/perRow)
	for i := 0; i < len(buttons); i += perRow {
		rows = append(rows, buttons[i:min(i+perRow, len(buttons))])
	}
	return rows
}

func orderLabel(o production.Order) string {
	if o.Name == "" {
		return o.NativeID
	}
	return o.NativeID + " " + o.Name
}

func productLabel(p production.Product) string {
	return p.NativeID + " · " + format.Quantity(p.Quantity) + "/" + format.Quantity(p.QuantityStatic)
}

func orderCard(t *turn, o production.Order) string {
	return t.tr("operator/order_card",
		format.Escape(o.NativeID),
		format.Escape(o.Name),
		format.Escape(o.LineRef),
		format.Quantity(o.TotalMass),
		format.Quantity(o.TotalLength),
		strconv.Itoa(o.ExecutionTime),
		format.Escape(o.Instructions),
	)
}

func bundleCard(t *turn, b production.Bundle) string {
	return t.tr("operator/bundle_card",
		format.Escape(b.NativeID),
		format.Quantity(b.TotalMass),
		format.Quantity(b.TotalLength),
		strconv.Itoa(b.ExecutionTime),
		format.Escape(b.Instructions),
	)
}

func productCard(t *turn, p production.Product, density float64) string {
	return t.tr("operator/product_card",
		format.Escape(p.NativeID),
		format.Escape(p.Profile),
		format.Quantity(p.Width),
		format.Quantity(p.Thickness),
		format.Quantity(p.Length),
		format.Escape(p.Color),
		strconv.Itoa(p.RollNumber),
		format.Quantity(p.Quantity),
		format.Quantity(p.QuantityStatic),
		unitMass(p.UnitMass(density)),
		format.Escape(p.Instructions),
	)
}

// unitMass trims float noise off tiny per-unit masses.
func unitMass(v float64) string {
	return format.Quantity(math.Round(v*1e9) / 1e9)
}

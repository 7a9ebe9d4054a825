package units

import (
	"github.com/shopspring/decimal"

	"operating-hours/internal/meter"
)

var kWhPerMWh = decimal.NewFromInt(1000)

// ToKWh returns a copy of readings with every quantity expressed in kWh.
// Applying it to its own output is a no-op.
func ToKWh(readings []meter.CanonicalReading) []meter.CanonicalReading {
	out := make([]meter.CanonicalReading, len(readings))
	for i, r := range readings {
		if r.Unit == meter.UnitMWh {
			r.Quantity = decimal.NewFromFloat(r.Quantity).Mul(kWhPerMWh).InexactFloat64()
		}
		r.Unit = meter.UnitKWh
		out[i] = r
	}
	return out
}

package meter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Region is an electricity market region; each maps to one civil time zone.
type Region string

const (
	RegionNSW Region = "NSW"
	RegionVIC Region = "VIC"
	RegionQLD Region = "QLD"
	RegionWA  Region = "WA"
)

// Regions lists every accepted region code.
var Regions = []Region{RegionNSW, RegionVIC, RegionQLD, RegionWA}

// Unit is an energy unit label.
type Unit string

const (
	UnitKWh Unit = "KWH"
	UnitMWh Unit = "MWH"
)

// ParseUnit accepts a unit label case-insensitively.
func ParseUnit(v string) (Unit, bool) {
	switch Unit(strings.ToUpper(strings.TrimSpace(v))) {
	case UnitKWh:
		return UnitKWh, true
	case UnitMWh:
		return UnitMWh, true
	default:
		return "", false
	}
}

// Intervals lists the accepted sampling periods.
var Intervals = []time.Duration{15 * time.Minute, 30 * time.Minute}

// Record is validated meter metadata. Construct it with NewRecord.
type Record struct {
	NMI      string
	Region   Region
	Interval time.Duration
}

// NewRecord validates raw registry values and builds a Record.
func NewRecord(nmi, state, interval string) (Record, error) {
	nmi = strings.TrimSpace(nmi)
	if nmi == "" {
		return Record{}, &InvalidMetadataError{Field: "Nmi", Value: nmi}
	}

	region, ok := parseRegion(state)
	if !ok {
		return Record{}, &InvalidMetadataError{NMI: nmi, Field: "State", Value: state}
	}

	minutes, err := strconv.ParseFloat(strings.TrimSpace(interval), 64)
	if err != nil {
		return Record{}, &InvalidMetadataError{NMI: nmi, Field: "Interval", Value: interval}
	}
	step := time.Duration(minutes * float64(time.Minute))
	if !validInterval(step) {
		return Record{}, &InvalidMetadataError{NMI: nmi, Field: "Interval", Value: interval}
	}

	return Record{NMI: nmi, Region: region, Interval: step}, nil
}

// SlotsPerDay is the number of readings a complete calendar day carries.
func (r Record) SlotsPerDay() int {
	return int((24 * time.Hour) / r.Interval)
}

func (r Record) String() string {
	return fmt.Sprintf("%s/%s/%s", r.NMI, r.Region, r.Interval)
}

func parseRegion(v string) (Region, bool) {
	candidate := Region(strings.ToUpper(strings.TrimSpace(v)))
	for _, r := range Regions {
		if r == candidate {
			return r, true
		}
	}
	return "", false
}

func validInterval(d time.Duration) bool {
	for _, allowed := range Intervals {
		if d == allowed {
			return true
		}
	}
	return false
}

// RawReading is one unparsed consumption row.
type RawReading struct {
	TimestampText string
	QuantityText  string
	UnitText      string
}

// DraftReading is a cleaned reading whose timestamp has no zone attached yet.
type DraftReading struct {
	SourceTime time.Time
	Quantity   float64
	Unit       Unit
}

// CanonicalReading carries both the reference-zone and region-local instant.
type CanonicalReading struct {
	SourceTime time.Time
	LocalTime  time.Time
	Quantity   float64
	Unit       Unit
}

// TimeOfDayLayout formats window boundaries.
const TimeOfDayLayout = "15:04:05"

// Window is an operating-hours estimate as local times of day.
type Window struct {
	Start string
	End   string
}

func (w Window) String() string {
	return w.Start + " to " + w.End
}

// DailyEstimate is the estimate for one source calendar day; Window is nil when
// the day showed no qualifying pattern.
type DailyEstimate struct {
	Day    time.Time
	Window *Window
}

// Result is the representative answer for one meter.
type Result struct {
	NMI            string
	Region         Region
	Window         *Window
	Support        int
	QualifyingDays int
	DaysEvaluated  int
}

// HasPattern reports whether a representative window was found.
func (r Result) HasPattern() bool {
	return r.Window != nil
}

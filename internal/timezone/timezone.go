package timezone

import (
	"fmt"
	"time"
	// Embedded tz database so region conversion does not depend on the host.
	_ "time/tzdata"

	"operating-hours/internal/cleaner"
	"operating-hours/internal/meter"
)

// DefaultSource is the reference zone raw timestamps are recorded in (AEST, no DST).
const DefaultSource = "Australia/Brisbane"

// ZoneMap maps each region to its civil time zone. Treat it as read-only.
type ZoneMap map[meter.Region]*time.Location

// DefaultZoneNames returns the region to IANA zone name table.
func DefaultZoneNames() map[meter.Region]string {
	return map[meter.Region]string{
		meter.RegionNSW: "Australia/Sydney",
		meter.RegionVIC: "Australia/Melbourne",
		meter.RegionQLD: "Australia/Brisbane",
		meter.RegionWA:  "Australia/Perth",
	}
}

// LoadZones resolves IANA names into a ZoneMap.
func LoadZones(names map[meter.Region]string) (ZoneMap, error) {
	zones := make(ZoneMap, len(names))
	for region, name := range names {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("load zone %s for %s: %w", name, region, err)
		}
		zones[region] = loc
	}
	return zones, nil
}

// DefaultZones is LoadZones(DefaultZoneNames()).
func DefaultZones() (ZoneMap, error) {
	return LoadZones(DefaultZoneNames())
}

// Normalizer attaches the reference zone to draft timestamps and derives
// region-local times. It holds its own copy of the zone table.
type Normalizer struct {
	source *time.Location
	zones  ZoneMap
}

// NewNormalizer copies zones so later changes by the caller are not observed.
func NewNormalizer(source *time.Location, zones ZoneMap) (*Normalizer, error) {
	if source == nil {
		return nil, fmt.Errorf("source zone is required")
	}
	copied := make(ZoneMap, len(zones))
	for region, loc := range zones {
		if loc == nil {
			return nil, fmt.Errorf("zone for %s is nil", region)
		}
		copied[region] = loc
	}
	return &Normalizer{source: source, zones: copied}, nil
}

// Source returns the reference zone.
func (n *Normalizer) Source() *time.Location {
	return n.source
}

// Zone returns the civil zone of region.
func (n *Normalizer) Zone(region meter.Region) (*time.Location, error) {
	loc, ok := n.zones[region]
	if !ok {
		return nil, &meter.InvalidMetadataError{Field: "State", Value: string(region)}
	}
	return loc, nil
}

// Attach interprets each draft wall clock in the reference zone and converts it
// to region's zone.
func (n *Normalizer) Attach(draft cleaner.Draft, region meter.Region) ([]meter.CanonicalReading, error) {
	local, err := n.Zone(region)
	if err != nil {
		return nil, err
	}

	out := make([]meter.CanonicalReading, 0, len(draft.Readings))
	for _, r := range draft.Readings {
		wall := r.SourceTime
		src := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), n.source)
		out = append(out, meter.CanonicalReading{
			SourceTime: src,
			LocalTime:  src.In(local),
			Quantity:   r.Quantity,
			Unit:       r.Unit,
		})
	}
	return out, nil
}

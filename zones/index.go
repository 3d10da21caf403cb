package zones

import "sort"

// Zone is one row of the taxi zone lookup table.
type Zone struct {
	LocationID  int64
	Borough     string
	Zone        string
	ServiceZone string
}

// Index stores zones in memory for fast lookups.
type Index struct {
	zones map[int64]Zone // locationid -> zone
	dupes int
}

// NewIndex creates a new empty index.
func NewIndex() *Index {
	return &Index{zones: map[int64]Zone{}}
}

// Add inserts z. The first zone seen for a location id is kept; Add reports false for
// later duplicates.
func (x *Index) Add(z Zone) bool {
	if _, ok := x.zones[z.LocationID]; ok {
		x.dupes++
		return false
	}
	x.zones[z.LocationID] = z
	return true
}

// Len returns the number of distinct location ids.
func (x *Index) Len() int { return len(x.zones) }

// Duplicates returns how many rows were ignored because their location id was already indexed.
func (x *Index) Duplicates() int { return x.dupes }

// Get returns the zone for a location id.
func (x *Index) Get(id int64) (Zone, bool) {
	z, ok := x.zones[id]
	return z, ok
}

// IDs returns the indexed location ids in ascending order.
func (x *Index) IDs() []int64 {
	ids := make([]int64, 0, len(x.zones))
	for id := range x.zones {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Values returns borough, zone and service_zone as table values. Empty fields become
// missing values.
func (z Zone) Values() []any {
	return []any{nullable(z.Borough), nullable(z.Zone), nullable(z.ServiceZone)}
}

// Records returns one row per zone in location id order: id, borough, zone and
// service_zone, with empty fields as nil.
func (x *Index) Records() [][]any {
	ids := x.IDs()
	out := make([][]any, len(ids))
	for i, id := range ids {
		out[i] = append([]any{id}, x.zones[id].Values()...)
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

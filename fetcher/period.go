package fetcher

import (
	"fmt"
	"time"
)

// Period is one monthly release of the trip record data.
type Period struct {
	Year  int
	Month time.Month
}

func (p Period) String() string { return fmt.Sprintf("%d-%02d", p.Year, int(p.Month)) }

// FileName returns "{dataset}_{YYYY}-{MM}.parquet".
func (p Period) FileName(dataset string) string {
	return fmt.Sprintf("%s_%s.parquet", dataset, p)
}

// Periods lists every month from endYear down to startYear, months ascending within a
// year. Months after now are left out since they cannot have been published.
func Periods(startYear, endYear int, now time.Time) []Period {
	var out []Period
	for y := endYear; y >= startYear; y-- {
		for m := time.January; m <= time.December; m++ {
			if y > now.Year() || (y == now.Year() && m > now.Month()) {
				continue
			}
			out = append(out, Period{Year: y, Month: m})
		}
	}
	return out
}

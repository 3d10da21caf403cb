/*
Package zones loads the taxi zone lookup table and indexes it by location id.

The index is data-source agnostic: it can be built from any io.Reader holding the
lookup CSV, from a file on disk, or from a database table.

# Basic Usage

	idx, err := zones.LoadCSVFile("taxi_zone_lookup.csv")
	if err != nil {
	    log.Fatal(err)
	}

	z, ok := idx.Get(161)
	// z.Borough == "Manhattan", z.Zone == "Midtown Center"

Empty borough, zone or service_zone fields are kept as empty strings in the index and
surface as NULL through Values and Records, so trips joined against them are treated
as incomplete downstream.
*/
package zones

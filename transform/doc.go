// Package transform cleans raw trip frames and enriches them with zone names.
//
// The steps, in order:
//
//  1. lowercase every column name (first column wins on a collision)
//  2. drop rows missing passenger_count or fare_amount
//  3. keep rows where trip_distance, passenger_count and fare_amount are all > 0
//  4. left join pulocationid to the zone index as pu_borough, pu_zone, pu_service_zone
//  5. left join dolocationid the same way with the do_ prefix
//  6. derive route_borough and route_zone as "{pickup} - {dropoff}"
//  7. drop every row that still has a missing value
//
// Rows whose pickup or dropoff location is not in the zone index end up with missing
// join columns and are removed by step 7. Every removal is counted in a Report.
//
// The steps run as one DuckDB query over the raw frame's table, joined to a
// temporary table built from the zone index. A dropped row is counted once, under
// the first step that removes it, and the first three are kept as examples such as
// "row 12 (fare_amount=0)".
//
// # Usage
//
//	idx, _ := zones.LoadCSVFile("taxi_zone_lookup.csv")
//	out, report, err := transform.Transform(ctx, raw, idx)
//	if err != nil {
//	    return err
//	}
//	report.Log(logger, "yellow_tripdata_2024-01.parquet")
package transform

/*
Package frame provides the table the ETL stages pass between each other.

A Frame is a handle on a table inside an embedded DuckDB database: its name, its
typed columns and its row count. The rows stay in DuckDB, so the transform runs as
SQL over them and the parquet sink copies them straight to disk. A frame is never
modified once built; derive a new one with Create and Drop the old one.

# Basic Usage

	db, err := frame.Open()
	if err != nil {
	    log.Fatal(err)
	}
	raw, err := frame.Create(ctx, db, frame.TableName("raw"),
	    "SELECT * FROM read_parquet('yellow_tripdata_2024-01.parquet')")
	if err != nil {
	    log.Fatal(err)
	}
	defer raw.Drop(ctx)

	paid, err := frame.Create(ctx, db, frame.TableName("paid"),
	    "SELECT * FROM "+frame.Quote(raw.Table())+" WHERE fare_amount > 0")

# Values

Rows read back through Rows or Records are plain driver values. DECIMAL columns
arrive as duckdb.Decimal; Float, Int and IsMissing understand them.
*/
package frame

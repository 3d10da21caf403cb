package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshafouda/taxitripapp/frame"
)

func TestQuery(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"histo/yellow_tripdata_2024-01.parquet", "SELECT * FROM read_parquet('histo/yellow_tripdata_2024-01.parquet')", false},
		{"trips.CSV", "SELECT * FROM read_csv_auto('trips.CSV')", false},
		{"it's.parquet", "SELECT * FROM read_parquet('it''s.parquet')", false},
		{"trips.json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Query(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDuckDB_ExtractCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.csv")
	require.NoError(t, os.WriteFile(path, []byte("PULocationID,fare_amount\n161,12.5\n255,\n"), 0o644))

	d, err := OpenDuckDB()
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	f, err := d.Extract(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 2, f.Len())
	require.Equal(t, []string{"PULocationID", "fare_amount"}, f.Columns())
	require.Same(t, d.DB(), f.DB())

	recs, err := f.Records(ctx)
	require.NoError(t, err)
	require.Nil(t, recs[1][1])

	_, err = d.Extract(ctx, filepath.Join(t.TempDir(), "missing.parquet"))
	require.Error(t, err)
}

func TestDuckDB_ExtractParquetKeepsDecimals(t *testing.T) {
	d, err := OpenDuckDB()
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "yellow_tripdata_2024-01.parquet")
	_, err = d.DB().ExecContext(ctx, "COPY (SELECT 1::BIGINT AS passenger_count, 14.5::DECIMAL(10,2) AS fare_amount) TO "+
		frame.Literal(path)+" (FORMAT PARQUET)")
	require.NoError(t, err)

	f, err := d.Extract(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []frame.Column{{Name: "passenger_count", Type: "BIGINT"}, {Name: "fare_amount", Type: "DECIMAL(10,2)"}}, f.Schema())

	recs, err := f.Records(ctx)
	require.NoError(t, err)
	fare, ok := frame.Float(recs[0][1])
	require.True(t, ok)
	require.Equal(t, 14.5, fare)
}

package sink

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/joshafouda/taxitripapp/frame"
	"github.com/joshafouda/taxitripapp/source"
)

func countParquet(t *testing.T, path string) int {
	t.Helper()
	var n int
	require.NoError(t, openDuckDB(t).QueryRow("SELECT COUNT(*) FROM read_parquet("+frame.Literal(path)+")").Scan(&n))
	return n
}

func TestParquetSink_CopiesFromSharedDatabase(t *testing.T) {
	db := openDuckDB(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trips.parquet")
	s := NewParquetSink(db, path)

	f := decimalFrame(t, db)
	require.NoError(t, s.Load(ctx, f))
	require.NoError(t, s.Load(ctx, f))
	require.NoError(t, s.Close())
	require.Equal(t, 2, countParquet(t, path))

	var typ string
	require.NoError(t, db.QueryRow(
		"SELECT typeof(fare_amount) FROM read_parquet("+frame.Literal(path)+") LIMIT 1",
	).Scan(&typ))
	require.Equal(t, "DECIMAL(10,2)", typ)

	var tables int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM information_schema.tables WHERE table_schema = 'main'").Scan(&tables))
	require.Equal(t, 1, tables, "nothing is staged when the frame shares the database")
}

func TestParquetSink_StagesDecimalsFromOtherDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.parquet")
	s, err := OpenParquet(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Load(context.Background(), decimalFrame(t, openDuckDB(t))))

	var fare float64
	require.NoError(t, openDuckDB(t).QueryRow("SELECT fare_amount FROM read_parquet("+frame.Literal(path)+")").Scan(&fare))
	require.Equal(t, 14.5, fare)
}

func TestParquetSink_AppendsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data_loaded", "transformed_taxi_data.parquet")
	s, err := OpenParquet(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Load(ctx, tripFrame(t,
		[]any{int32(161), 12.5, "Midtown - Williamsburg"},
		[]any{int32(237), 9.0, "Upper East Side South - Midtown"},
	)))
	require.Equal(t, 2, countParquet(t, path))

	require.NoError(t, s.Load(ctx, tripFrame(t, []any{int32(4), 30.0, "Alphabet City - Midtown"})))
	require.Equal(t, 3, countParquet(t, path))

	require.NoError(t, s.Load(ctx, tripFrame(t)))
	require.Equal(t, 3, countParquet(t, path))

	d, err := source.OpenDuckDB()
	require.NoError(t, err)
	defer d.Close()
	f, err := d.Extract(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []string{"pulocationid", "fare_amount", "route_zone"}, f.Columns())
}

type fakePutter struct {
	bucket, key string
	size        int
}

func (p *fakePutter) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	p.bucket, p.key = aws.StringValue(in.Bucket), aws.StringValue(in.Key)
	b, err := io.ReadAll(in.Body)
	p.size = len(b)
	return &s3.PutObjectOutput{}, err
}

func TestS3Mirror_UploadsAfterLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transformed_taxi_data.parquet")
	p, err := OpenParquet(path)
	require.NoError(t, err)
	defer p.Close()

	put := &fakePutter{}
	m := NewS3Mirror(p, put, "taxi-lake", "")
	require.Equal(t, "parquet file "+path+" mirrored to s3://taxi-lake/transformed_taxi_data.parquet", m.Describe())

	require.NoError(t, m.Load(context.Background(), tripFrame(t, []any{int32(1), 2.0, "a - b"})))
	require.Equal(t, "taxi-lake", put.bucket)
	require.Equal(t, "transformed_taxi_data.parquet", put.key)
	require.Positive(t, put.size)
}

func TestS3Mirror_SkipsUploadForEmptyFrame(t *testing.T) {
	p, err := OpenParquet(filepath.Join(t.TempDir(), "out.parquet"))
	require.NoError(t, err)
	defer p.Close()

	put := &fakePutter{}
	require.NoError(t, NewS3Mirror(p, put, "b", "k").Load(context.Background(), tripFrame(t)))
	require.Empty(t, put.bucket)
}

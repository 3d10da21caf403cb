package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/joshafouda/taxitripapp/frame"
)

// ObjectPutter is the part of the S3 API the mirror uses.
type ObjectPutter interface {
	PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3Config locates the mirror object.
type S3Config struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string // set for S3-compatible stores such as MinIO
}

// S3Mirror uploads the parquet file after every successful load, so the bucket always
// holds the latest full copy.
type S3Mirror struct {
	*ParquetSink
	client ObjectPutter
	bucket string
	key    string
}

// NewS3Client builds an S3 client from the default credential chain.
func NewS3Client(cfg S3Config) (*s3.S3, error) {
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return s3.New(sess), nil
}

// NewS3Mirror wraps p. An empty key defaults to the parquet file name.
func NewS3Mirror(p *ParquetSink, client ObjectPutter, bucket, key string) *S3Mirror {
	if key == "" {
		key = filepath.Base(p.Path())
	}
	return &S3Mirror{ParquetSink: p, client: client, bucket: bucket, key: key}
}

// Describe names both destinations.
func (m *S3Mirror) Describe() string {
	return fmt.Sprintf("%s mirrored to s3://%s/%s", m.ParquetSink.Describe(), m.bucket, m.key)
}

// Load appends to the local file and then uploads it.
func (m *S3Mirror) Load(ctx context.Context, f *frame.Frame) error {
	if err := m.ParquetSink.Load(ctx, f); err != nil {
		return err
	}
	if f.Len() == 0 {
		return nil
	}
	file, err := os.Open(m.Path())
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, err = m.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(m.key),
		Body:        file,
		ContentType: aws.String("application/vnd.apache.parquet"),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", m.bucket, m.key, err)
	}
	return nil
}

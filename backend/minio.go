package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kjk/ledgerstore/appendstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig describes S3-compatible storage (minio, s3, r2, backblaze)
type MinioConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Access   string `mapstructure:"access"`
	Secret   string `mapstructure:"secret"`
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	// objects are stored as <Prefix>/<key>
	Prefix string `mapstructure:"prefix"`
	// use http instead of https, for local minio
	Insecure bool `mapstructure:"insecure"`

	RequestTrace io.Writer `mapstructure:"-"`
}

func (c *MinioConfig) Validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.Access == "" {
		missing = append(missing, "access")
	}
	if c.Secret == "" {
		missing = append(missing, "secret")
	}
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("minio backend config is missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Minio stores each collection as an object in a bucket
type Minio struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

// NewMinio connects to the server and checks that the bucket exists
func NewMinio(config *MinioConfig) (*Minio, error) {
	if config == nil {
		return nil, errors.New("must provide config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := config
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if c.RequestTrace != nil {
		mc.TraceOn(c.RequestTrace)
	}
	found, err := mc.BucketExists(context.Background(), c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &Minio{
		Client: mc,
		Bucket: c.Bucket,
		Prefix: strings.Trim(c.Prefix, "/"),
	}, nil
}

func (m *Minio) objectName(key string) string {
	if m.Prefix == "" {
		return key
	}
	return path.Join(m.Prefix, key)
}

func (m *Minio) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	obj, err := m.Client.GetObject(ctx, m.Bucket, m.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, err
	}
	defer obj.Close()
	// GetObject is lazy, errors like missing object show up on first read
	d, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return d, true, nil
}

func (m *Minio) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	opts := minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}
	r := bytes.NewReader(value)
	_, err := m.Client.PutObject(ctx, m.Bucket, m.objectName(key), r, int64(len(value)), opts)
	return minioError(err)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func minioError(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "EntityTooLarge", "XMinioStorageFull", "QuotaExceeded":
		return fmt.Errorf("%w: %s", appendstore.ErrStorageCapacityExceeded, err)
	}
	return err
}

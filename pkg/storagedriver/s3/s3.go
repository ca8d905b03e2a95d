// Package s3 implements storagedriver.Provider against an S3-compatible
// blob store using the minio-go client, exercising a dependency otherwise
// unwired in the core module (see DESIGN.md).
package s3

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mitchellh/mapstructure"
	"github.com/octopus-bim/octopus/pkg/storagedriver"
)

func init() {
	storagedriver.Registry.Register("s3", New)
}

type config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	UseSSL    bool   `mapstructure:"useSSL"`
	Region    string `mapstructure:"region"`
}

type provider struct {
	client *minio.Client
	bucket string
}

// New constructs an S3-compatible Provider from a raw config map
// (storage.s3.*).
func New(m map[string]interface{}) (storagedriver.Provider, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, err
	}

	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, c.Bucket, minio.MakeBucketOptions{Region: c.Region}); err != nil {
			return nil, err
		}
	}

	return &provider{client: client, bucket: c.Bucket}, nil
}

func (p *provider) ProviderID() string { return "s3" }

func (p *provider) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := p.client.PutObject(ctx, p.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (p *provider) OpenRead(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := p.client.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy: force a Stat to surface a not-found error now
	// rather than at first Read, and translate it to the (nil, nil)
	// absent-key contract.
	if _, err := obj.Stat(); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			obj.Close()
			return nil, nil
		}
		obj.Close()
		return nil, err
	}
	return obj, nil
}

func (p *provider) Delete(ctx context.Context, key string) error {
	return p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{})
}

func (p *provider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *provider) Size(ctx context.Context, key string) (*int64, error) {
	info, err := p.client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, err
	}
	return &info.Size, nil
}

package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

type Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type Client struct {
	Client *s3.Client
	Bucket *string
}

func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	opts := []func(*s3config.LoadOptions) error{
		s3config.WithRegion(config.Region),
	}
	// Fall back to the default credential chain when no static keys are configured.
	if config.AccessKey != "" {
		opts = append(opts, s3config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, ""),
		))
	}
	s3Config, err := s3config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load s3 config")
	}

	client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.UsePathStyle
	})
	return &Client{
		Client: client,
		Bucket: aws.String(config.Bucket),
	}, nil
}

// UploadObject uploads an object to S3 and returns its s3:// URI.
func (c *Client) UploadObject(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	uploader := manager.NewUploader(c.Client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      c.Bucket,
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", errors.Wrapf(err, "failed to upload object %s", key)
	}
	return fmt.Sprintf("s3://%s/%s", *c.Bucket, key), nil
}

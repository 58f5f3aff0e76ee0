// Package storage stages downloaded media in an S3-compatible bucket, keyed
// by content hash, and mints short-lived presigned GET URLs for the gateway.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	appconfig "github.com/baechuer/media-pirate/internal/config"
)

// ObjectMetadata is the user metadata attached to every staged artifact.
// Values are URL-encoded before upload.
type ObjectMetadata struct {
	Extension         string
	OriginalName      string
	SourceURLHash     string
	DownloadTimestamp string
	OriginalURL       string
	CleanedURL        string
	URLDomain         string
}

func (m ObjectMetadata) encode() map[string]string {
	return map[string]string{
		"extension":          url.QueryEscape(m.Extension),
		"original-name":      url.QueryEscape(m.OriginalName),
		"source-url-hash":    url.QueryEscape(m.SourceURLHash),
		"download-timestamp": url.QueryEscape(m.DownloadTimestamp),
		"original-url":       url.QueryEscape(m.OriginalURL),
		"cleaned-url":        url.QueryEscape(m.CleanedURL),
		"url-domain":         url.QueryEscape(m.URLDomain),
	}
}

func decodeMetadata(raw map[string]string) ObjectMetadata {
	get := func(key string) string {
		v, err := url.QueryUnescape(raw[key])
		if err != nil {
			return raw[key]
		}
		return v
	}
	return ObjectMetadata{
		Extension:         get("extension"),
		OriginalName:      get("original-name"),
		SourceURLHash:     get("source-url-hash"),
		DownloadTimestamp: get("download-timestamp"),
		OriginalURL:       get("original-url"),
		CleanedURL:        get("cleaned-url"),
		URLDomain:         get("url-domain"),
	}
}

// Client wraps the AWS S3 client for MinIO-compatible endpoints.
type Client struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	cfg       *appconfig.Config
	log       zerolog.Logger
}

func NewClient(cfg *appconfig.Config, log zerolog.Logger) (*Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.S3Endpoint,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return &Client{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		cfg:       cfg,
		log:       log.With().Str("component", "storage").Logger(),
	}, nil
}

// EnsureBucket creates the staging bucket if it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}
	c.log.Info().Str("bucket", c.bucket).Msg("creating bucket")
	if _, err := c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// ObjectInfo is what a staged object reports back on a HEAD hit.
type ObjectInfo struct {
	ContentType string
	Meta        ObjectMetadata
}

// Stat looks an object up by key. A HEAD miss is an expected outcome and
// returns (nil, nil), not an error.
func (c *Client) Stat(ctx context.Context, objectKey string) (*ObjectInfo, error) {
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, nil
	}
	return &ObjectInfo{
		ContentType: aws.ToString(out.ContentType),
		Meta:        decodeMetadata(out.Metadata),
	}, nil
}

// UploadFile stages a local file under the key with the artifact metadata.
func (c *Client) UploadFile(ctx context.Context, objectKey, path, contentType string, meta ObjectMetadata) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(objectKey),
		Body:          f,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
		Metadata:      meta.encode(),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", objectKey, err)
	}
	return nil
}

// PresignGet mints a presigned GET for the staged object. Response headers
// force the content type and an attachment filename so chat clients treat
// the artifact as a named download.
func (c *Client) PresignGet(ctx context.Context, objectKey, contentType, filename string) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(c.bucket),
		Key:                        aws.String(objectKey),
		ResponseContentType:        aws.String(contentType),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", filename)),
	}, s3.WithPresignExpires(c.cfg.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign GET %s: %w", objectKey, err)
	}
	return req.URL, nil
}

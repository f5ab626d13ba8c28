package artsource

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/cshum/vipsgen/vips"
	"golang.org/x/net/http2"

	"github.com/sashko-guz/thumbnailerd/internal/logger"
)

// S3Extractor fetches source art from an S3-compatible bucket instead of the
// local filesystem, for deployments that mirror music library art into
// object storage rather than mounting it. It satisfies the same
// decode-autorotate-reencode contract as LocalExtractor (spec §4.2's
// extraction step is agnostic to where the bytes came from).
type S3Extractor struct {
	client  *s3.Client
	bucket  string
	Quality int
}

// S3Config names the connection settings an operator supplies via
// environment variables (THUMBNAILER_S3_*, see cmd/thumbnailerd).
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // non-empty selects an S3-compatible endpoint (MinIO, etc.)
	AccessKey string
	SecretKey string
}

// NewS3Extractor builds an S3Extractor with a connection-pooled HTTP/2
// client, grounded in the teacher's storage/drivers/s3.go client tuning.
func NewS3Extractor(ctx context.Context, cfg S3Config, quality int) (*S3Extractor, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("artsource: S3 bucket not configured")
	}
	if quality <= 0 || quality > 100 {
		quality = 95
	}

	httpClient := newS3HTTPClient()

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.New(s3.Options{
			Region:       cfg.Region,
			Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			BaseEndpoint: aws.String(cfg.Endpoint),
			UsePathStyle: true,
			HTTPClient:   httpClient,
		})
	} else {
		opts := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
			config.WithHTTPClient(httpClient),
		}
		if cfg.AccessKey != "" && cfg.SecretKey != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("artsource: loading AWS config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &S3Extractor{client: client, bucket: cfg.Bucket, Quality: quality}, nil
}

func newS3HTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warnf("[S3Extractor] failed to configure HTTP/2: %v", err)
	}
	return &http.Client{Transport: transport, Timeout: 30 * time.Second}
}

type s3Job struct {
	extractor *S3Extractor
	req       LocalRequest
}

// Job treats req.Path as the object key within the configured bucket.
func (e *S3Extractor) Job(req LocalRequest) Source {
	return &s3Job{extractor: e, req: req}
}

func (j *s3Job) Fetch(ctx context.Context) (Result, error) {
	return j.extractor.fetch(ctx, j.req)
}

func (e *S3Extractor) fetch(ctx context.Context, req LocalRequest) (Result, error) {
	out, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(req.Path),
	})
	if err != nil {
		var respErr *smithyhttp.ResponseError
		if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
			return Result{Outcome: NotFound, Detail: err.Error()}, nil
		}
		return Result{Outcome: Transient, Detail: err.Error()}, nil
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Result{Outcome: Transient, Detail: err.Error()}, nil
	}

	loadOptions := vips.DefaultLoadOptions()
	loadOptions.Autorotate = true
	img, err := vips.NewImageFromBuffer(data, loadOptions)
	if err != nil {
		logger.Warnf("[S3Extractor] decode failed for %s/%s: %v", e.bucket, req.Path, err)
		return Result{Outcome: DecodeError, Detail: "decode_error"}, nil
	}
	defer img.Close()

	jpeg, err := img.JpegsaveBuffer(&vips.JpegsaveBufferOptions{Q: e.Quality})
	if err != nil {
		return Result{}, fmt.Errorf("artsource: re-encoding %s/%s: %w", e.bucket, req.Path, err)
	}
	return Result{Outcome: Ok, Bytes: jpeg}, nil
}

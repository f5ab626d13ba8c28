package artsource

import (
	"context"
	"testing"
)

func TestNewS3ExtractorRejectsEmptyBucket(t *testing.T) {
	_, err := NewS3Extractor(context.Background(), S3Config{Region: "us-east-1"}, 90)
	if err == nil {
		t.Fatal("expected an error when no bucket is configured")
	}
}

// Endpoint set selects the path-style static-credentials branch, which
// never calls config.LoadDefaultConfig and so needs no network access or
// ambient AWS configuration to construct successfully.
func TestNewS3ExtractorClampsInvalidQuality(t *testing.T) {
	cfg := S3Config{Region: "us-east-1", Bucket: "art", Endpoint: "http://127.0.0.1:1", AccessKey: "x", SecretKey: "y"}

	e, err := NewS3Extractor(context.Background(), cfg, 0)
	if err != nil {
		t.Fatalf("NewS3Extractor: %v", err)
	}
	if e.Quality != 95 {
		t.Fatalf("Quality = %d, want default 95", e.Quality)
	}

	e, err = NewS3Extractor(context.Background(), cfg, 150)
	if err != nil {
		t.Fatalf("NewS3Extractor: %v", err)
	}
	if e.Quality != 95 {
		t.Fatalf("Quality = %d, want default 95", e.Quality)
	}

	e, err = NewS3Extractor(context.Background(), cfg, 80)
	if err != nil {
		t.Fatalf("NewS3Extractor: %v", err)
	}
	if e.Quality != 80 {
		t.Fatalf("Quality = %d, want 80", e.Quality)
	}
}

package artsource

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cshum/vipsgen/vips"

	"github.com/sashko-guz/thumbnailerd/internal/logger"
)

// LocalExtractor decodes a local media file to its fully decoded,
// orientation-normalised full-size bytes (spec §4.4's "local extractor").
// Adapted from the teacher's internal/processor/image.go thumbnail pipeline,
// narrowed to the one fixed operation spec §4.5 step 7 actually calls for:
// decode, autorotate, re-encode — no filter DSL, no crop, no format choice.
type LocalExtractor struct {
	// Quality is the JPEG quality used when re-encoding the canonical
	// full-size original (A-image's stored artifact).
	Quality int
}

// NewLocalExtractor builds an extractor with the given re-encode quality.
// A quality outside vips's valid 1-100 range is replaced by 95.
func NewLocalExtractor(quality int) *LocalExtractor {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	return &LocalExtractor{Quality: quality}
}

// localJob binds a LocalExtractor to one path, implementing Source.
type localJob struct {
	extractor *LocalExtractor
	req       LocalRequest
}

// Job returns a Source for a single local-file fetch. The extraction itself
// is CPU-bound and synchronous; the caller is expected to hold an extraction
// limiter token (internal/ratelimit) while this runs, and to run it on its
// own goroutine so ctx cancellation can still apply to the surrounding
// handler even though libvips offers no mid-decode cancellation hook.
func (e *LocalExtractor) Job(req LocalRequest) Source {
	return &localJob{extractor: e, req: req}
}

func (j *localJob) Fetch(ctx context.Context) (Result, error) {
	return j.extractor.fetch(ctx, j.req)
}

func (e *LocalExtractor) fetch(ctx context.Context, req LocalRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	data, err := os.ReadFile(req.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Outcome: NotFound, Detail: err.Error()}, nil
		}
		if errors.Is(err, os.ErrPermission) {
			return Result{}, fmt.Errorf("artsource: permission denied reading %s: %w", req.Path, err)
		}
		return Result{}, fmt.Errorf("artsource: reading %s: %w", req.Path, err)
	}

	loadOptions := vips.DefaultLoadOptions()
	loadOptions.Autorotate = true

	img, err := vips.NewImageFromBuffer(data, loadOptions)
	if err != nil {
		logger.Warnf("[LocalExtractor] decode failed for %s: %v", req.Path, err)
		return Result{Outcome: DecodeError, Detail: "decode_error"}, nil
	}
	defer img.Close()

	out, err := img.JpegsaveBuffer(&vips.JpegsaveBufferOptions{Q: e.Quality})
	if err != nil {
		return Result{}, fmt.Errorf("artsource: re-encoding %s: %w", req.Path, err)
	}

	return Result{Outcome: Ok, Bytes: out}, nil
}

// Package handler implements component E: the per-request state machine
// that threads a thumbnail or cover-art request through credential check,
// the three-stage cache probe, rate-limited fetch, post-processing, and
// reply delivery (spec §4.5).
package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cshum/vipsgen/vips"
	"golang.org/x/sync/singleflight"

	"github.com/sashko-guz/thumbnailerd/internal/artsource"
	"github.com/sashko-guz/thumbnailerd/internal/cache"
	"github.com/sashko-guz/thumbnailerd/internal/credentials"
	"github.com/sashko-guz/thumbnailerd/internal/logger"
	"github.com/sashko-guz/thumbnailerd/internal/ratelimit"
)

// Kind discriminates the two request shapes of spec §3.
type Kind int

const (
	KindThumbnail Kind = iota
	KindAlbumArt
	KindArtistArt
)

// Request is the discriminated record of spec §3.
type Request struct {
	Kind     Kind
	Path     string // KindThumbnail
	Artist   string // KindAlbumArt / KindArtistArt
	Album    string
	Width    int
	Height   int
	Peer     string // caller identity to resolve via the credentials cache
}

// Result is what a successful Begin returns: the encoded JPEG bytes plus the
// timings spec §4.5 asks to be "recorded and exposed on completion".
type Result struct {
	Bytes          []byte
	QueuedTime     time.Duration
	FetchTime      time.Duration
	CompletionTime time.Duration
}

// Caches bundles the three persistent cache instances a Handler consults.
type Caches struct {
	Image *cache.Cache
	Thumb *cache.Cache
	Fail  *cache.Cache
}

// Limiters bundles the two rate limiters a Handler acquires from.
type Limiters struct {
	Download  *ratelimit.Limiter
	Extraction *ratelimit.Limiter
}

// Extractor produces a one-shot Source for a local-kind request. Both
// artsource.LocalExtractor (filesystem) and artsource.S3Extractor (object
// storage) satisfy it, so the backing store is a deployment choice rather
// than something the handler's state machine needs to know about.
type Extractor interface {
	Job(req artsource.LocalRequest) artsource.Source
}

// Handler coordinates components A–D for every request. One Handler value
// is shared across requests (it holds no per-request mutable state besides
// what Begin's local variables capture); the Dispatcher is what gives each
// individual request its own lifecycle.
type Handler struct {
	Caches      Caches
	Limiters    Limiters
	Credentials *credentials.Cache
	Extractor   Extractor
	Downloader  *artsource.RemoteDownloader

	MaxSize        int
	JPEGQuality    int
	ProcessOwnerUID uint32

	// sfFetch coalesces concurrent fetches of the same base key (download
	// or extraction), independent of requested size — spec §8 invariant
	// "≤1 concurrent fetcher per key".
	sfFetch singleflight.Group
	// sfPipeline coalesces the whole probe+fetch+post-process pipeline for
	// identical (key, size) requests — spec §8 scenario 1, "100 concurrent
	// identical requests produce exactly one downloader invocation".
	sfPipeline singleflight.Group
}

// New builds a Handler. processOwnerUID is compared against the resolved
// caller uid for the "same user" policy check of spec §4.5 step 1.
func New(caches Caches, limiters Limiters, creds *credentials.Cache, extractor Extractor, downloader *artsource.RemoteDownloader, maxSize, jpegQuality int, processOwnerUID uint32) *Handler {
	return &Handler{
		Caches:          caches,
		Limiters:        limiters,
		Credentials:     creds,
		Extractor:       extractor,
		Downloader:      downloader,
		MaxSize:         maxSize,
		JPEGQuality:     jpegQuality,
		ProcessOwnerUID: processOwnerUID,
	}
}

// Begin runs the full state machine of spec §4.5 for one request.
func (hd *Handler) Begin(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	// 1. Credential check.
	creds, err := hd.Credentials.Lookup(ctx, req.Peer)
	if err != nil {
		return nil, newError(ReasonInternal, err)
	}
	if !creds.Valid || creds.UID != hd.ProcessOwnerUID {
		return nil, newError(ReasonPolicyDenied, fmt.Errorf("caller uid %d does not match process owner", creds.UID))
	}

	// 2. Size clamp.
	w, h := clampSize(req.Width, req.Height, hd.MaxSize)

	baseKey, err := hd.baseKey(req)
	if err != nil {
		return nil, newError(ReasonNotFound, err)
	}
	dKey := derivedKey(baseKey, w, h)

	// 3. Thumbnail-cache probe (fast path, ahead of the coalescing group so
	// a warm cache never pays singleflight overhead).
	if data, ok := hd.Caches.Thumb.Get(dKey); ok {
		return &Result{Bytes: data, CompletionTime: time.Since(start)}, nil
	}

	v, err, _ := hd.sfPipeline.Do(dKey, func() (interface{}, error) {
		return hd.runPipeline(ctx, baseKey, dKey, w, h, req)
	})
	if err != nil {
		return nil, err
	}
	// Copy out: concurrent callers coalesced onto the same Do call all
	// receive the same *Result, and each needs its own CompletionTime rather
	// than racing to write one shared field.
	res := *v.(*Result)
	res.CompletionTime = time.Since(start)
	return &res, nil
}

// runPipeline implements spec §4.5 steps 4–7, coalesced by derived key.
func (hd *Handler) runPipeline(ctx context.Context, baseKey, dKey string, w, h int, req Request) (*Result, error) {
	// 4. Failure-cache probe.
	if data, ok := hd.Caches.Fail.Get(baseKey); ok {
		class := decodeFailure(data)
		return nil, newError(class, fmt.Errorf("cached failure"))
	}

	// 5. Image-cache probe.
	imageBytes, haveImage := hd.Caches.Image.Get(baseKey)

	fetchStart := time.Now()
	if !haveImage {
		// 6. Acquire + fetch, coalesced by base key.
		v, err, _ := hd.sfFetch.Do(baseKey, func() (interface{}, error) {
			return hd.fetch(ctx, req)
		})
		if err != nil {
			return nil, newError(ReasonInternal, err)
		}
		result := v.(artsource.Result)

		switch result.Outcome {
		case artsource.Ok:
			imageBytes = result.Bytes
			if perr := hd.Caches.Image.Put(baseKey, imageBytes); perr != nil {
				logger.Warnf("[Handler] image cache admission failed for %s: %v", baseKey, perr)
			}
		case artsource.NotFound:
			hd.admitFailure(baseKey, ReasonNotFound)
			return nil, newError(ReasonNotFound, errors.New(result.Detail))
		case artsource.DecodeError:
			hd.admitFailure(baseKey, ReasonDecodeError)
			return nil, newError(ReasonDecodeError, errors.New(result.Detail))
		case artsource.Transient:
			// Not admitted into A-fail: the next request must retry (spec §7).
			return nil, newError(ReasonTransientNetwork, errors.New(result.Detail))
		}
	}
	fetchTime := time.Since(fetchStart)

	// 7. Post-process.
	out, err := hd.postProcess(imageBytes, w, h)
	if err != nil {
		hd.admitFailure(baseKey, ReasonDecodeError)
		return nil, newError(ReasonDecodeError, err)
	}
	if perr := hd.Caches.Thumb.Put(dKey, out); perr != nil {
		logger.Warnf("[Handler] thumb cache admission failed for %s: %v", dKey, perr)
	}

	return &Result{Bytes: out, FetchTime: fetchTime}, nil
}

// fetch acquires the appropriate rate limiter token and invokes the art
// source adapter (spec §4.5 step 6).
func (hd *Handler) fetch(ctx context.Context, req Request) (artsource.Result, error) {
	var limiter *ratelimit.Limiter
	var source artsource.Source

	switch req.Kind {
	case KindThumbnail:
		limiter = hd.Limiters.Extraction
		source = hd.Extractor.Job(artsource.LocalRequest{Path: req.Path})
	case KindAlbumArt:
		limiter = hd.Limiters.Download
		source = hd.Downloader.Job(artsource.RemoteRequest{Kind: artsource.KindAlbum, Artist: req.Artist, Album: req.Album})
	case KindArtistArt:
		limiter = hd.Limiters.Download
		source = hd.Downloader.Job(artsource.RemoteRequest{Kind: artsource.KindArtist, Artist: req.Artist, Album: req.Album})
	default:
		return artsource.Result{}, fmt.Errorf("handler: unknown request kind %d", req.Kind)
	}

	release, err := limiter.Acquire(ctx)
	if err != nil {
		return artsource.Result{}, err
	}
	defer release()

	return source.Fetch(ctx)
}

func (hd *Handler) baseKey(req Request) (string, error) {
	switch req.Kind {
	case KindThumbnail:
		key, err := localBaseKey(req.Path)
		if errors.Is(err, os.ErrNotExist) {
			// A missing file has no fingerprint; key it by absolute path so the
			// fetch step's not_found outcome can still be recorded in A-fail.
			// Creating the file later yields a fingerprinted key that misses it.
			abs, aerr := filepath.Abs(req.Path)
			if aerr != nil {
				return "", aerr
			}
			return "local:" + abs + ":missing", nil
		}
		return key, err
	case KindAlbumArt:
		return remoteBaseKey("album", req.Artist, req.Album), nil
	case KindArtistArt:
		return remoteBaseKey("artist", req.Artist, req.Album), nil
	default:
		return "", fmt.Errorf("handler: unknown request kind %d", req.Kind)
	}
}

func (hd *Handler) admitFailure(baseKey string, class ReasonClass) {
	if !class.Cacheable() {
		return
	}
	if err := hd.Caches.Fail.Put(baseKey, encodeFailure(class)); err != nil {
		logger.Warnf("[Handler] failure cache admission failed for %s: %v", baseKey, err)
	}
}

// clampSize bounds (w, h) to [0, maxSize] per spec §4.5 step 2. A request
// value of 0 is left untouched — it means "unbounded on that axis" and is
// resolved against the source's real aspect ratio in postProcess, not here.
func clampSize(w, h, maxSize int) (int, int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if w > maxSize {
		w = maxSize
	}
	if h > maxSize {
		h = maxSize
	}
	return w, h
}

// postProcess decodes imageBytes, applies EXIF orientation correction,
// scales to (w, h) with keep-aspect semantics and never upscaling beyond
// the original, then re-encodes to JPEG (spec §4.5 step 7). Adapted from the
// teacher's internal/operations/resize.go width/height-only scaling and its
// ThumbnailImage cover-mode call, narrowed to the one fixed operation this
// daemon performs (no crop, no fill, no format choice).
func (hd *Handler) postProcess(imageBytes []byte, w, h int) ([]byte, error) {
	loadOptions := vips.DefaultLoadOptions()
	loadOptions.Autorotate = true

	img, err := vips.NewImageFromBuffer(imageBytes, loadOptions)
	if err != nil {
		return nil, fmt.Errorf("decoding source bytes: %w", err)
	}
	defer img.Close()

	switch {
	case w == 0 && h == 0:
		// original size after orientation fix; no resize.

	case w == 0:
		if h < img.Height() {
			scale := float64(h) / float64(img.Height())
			opts := vips.DefaultResizeOptions()
			opts.Vscale = scale
			if err := img.Resize(scale, opts); err != nil {
				return nil, fmt.Errorf("resizing by height: %w", err)
			}
		}

	case h == 0:
		if w < img.Width() {
			scale := float64(w) / float64(img.Width())
			opts := vips.DefaultResizeOptions()
			opts.Vscale = scale
			if err := img.Resize(scale, opts); err != nil {
				return nil, fmt.Errorf("resizing by width: %w", err)
			}
		}

	default:
		if w < img.Width() || h < img.Height() {
			if err := img.ThumbnailImage(w, &vips.ThumbnailImageOptions{
				Height: h,
				Size:   vips.SizeDown,
			}); err != nil {
				return nil, fmt.Errorf("resizing to bounds: %w", err)
			}
		}
	}

	out, err := img.JpegsaveBuffer(&vips.JpegsaveBufferOptions{Q: hd.JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return out, nil
}

func encodeFailure(class ReasonClass) []byte {
	return []byte(class.String())
}

func decodeFailure(data []byte) ReasonClass {
	switch string(data) {
	case ReasonNotFound.String():
		return ReasonNotFound
	case ReasonDecodeError.String():
		return ReasonDecodeError
	default:
		return ReasonInternal
	}
}

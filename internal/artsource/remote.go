package artsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RemoteDownloader issues a GET against a configured art API root with
// query parameters artist, album, size (fixed per Kind), key — spec §4.4.
type RemoteDownloader struct {
	AlbumAPIRoot  string
	ArtistAPIRoot string
	APIKey        string
	Client        *http.Client
}

// NewRemoteDownloader builds a downloader with a bounded-timeout client; the
// caller is still expected to hold a download limiter token and to carry its
// own ctx deadline for per-request cancellation.
func NewRemoteDownloader(albumRoot, artistRoot, apiKey string) *RemoteDownloader {
	return &RemoteDownloader{
		AlbumAPIRoot:  albumRoot,
		ArtistAPIRoot: artistRoot,
		APIKey:        apiKey,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// remoteJob binds a RemoteDownloader to one (kind, artist, album) request,
// implementing Source.
type remoteJob struct {
	downloader *RemoteDownloader
	req        RemoteRequest
}

// Job returns a Source for a single remote-art fetch.
func (d *RemoteDownloader) Job(req RemoteRequest) Source {
	return &remoteJob{downloader: d, req: req}
}

func (j *remoteJob) Fetch(ctx context.Context) (Result, error) {
	return j.downloader.fetch(ctx, j.req)
}

// fetch classifies the HTTP reply into Ok/NotFound/Transient per spec §4.4
// and §9's tightened failure classifier (404 is cacheable not_found; 5xx and
// network errors are transient and must not be cached).
func (d *RemoteDownloader) fetch(ctx context.Context, req RemoteRequest) (Result, error) {
	root := d.AlbumAPIRoot
	if req.Kind == KindArtist {
		root = d.ArtistAPIRoot
	}
	if root == "" {
		return Result{}, fmt.Errorf("artsource: no API root configured for kind %v", req.Kind)
	}

	u, err := url.Parse(root)
	if err != nil {
		return Result{}, fmt.Errorf("artsource: invalid API root %q: %w", root, err)
	}
	q := u.Query()
	q.Set("artist", req.Artist)
	q.Set("album", req.Album)
	q.Set("size", fmt.Sprintf("%d", req.Kind.apiSize()))
	q.Set("key", d.APIKey)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("artsource: building request: %w", err)
	}

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		// Network-level failure (timeout, DNS, connection refused): transient,
		// never cached, per spec §7.
		return Result{Outcome: Transient, Detail: err.Error()}, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{Outcome: Transient, Detail: err.Error()}, nil
		}
		return Result{Outcome: Ok, Bytes: body}, nil

	case resp.StatusCode == http.StatusNotFound:
		return Result{Outcome: NotFound, Detail: "remote art not found"}, nil

	case resp.StatusCode >= 500:
		return Result{Outcome: Transient, Detail: fmt.Sprintf("upstream status %d", resp.StatusCode)}, nil

	default:
		// Any other status (including non-200 2xx) is classified as a
		// durable NotFound rather than a retryable Transient.
		return Result{Outcome: NotFound, Detail: fmt.Sprintf("unexpected upstream status %d", resp.StatusCode)}, nil
	}
}

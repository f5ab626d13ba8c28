// Package dispatcher implements component F: it accepts requests, builds
// Handlers, chains same-key requests so only one runs the fetch path at a
// time, and tracks the in-flight count for the inactivity monitor (spec §4.6).
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sashko-guz/thumbnailerd/internal/cache"
	"github.com/sashko-guz/thumbnailerd/internal/handler"
	"github.com/sashko-guz/thumbnailerd/internal/logger"
)

// ActivityTracker receives the startInactivity/endInactivity edges of
// spec §4.7; internal/inactivity.Monitor implements it.
type ActivityTracker interface {
	StartInactivity()
	EndInactivity()
}

// chainedRequest is one entry in a base-key FIFO chain.
type chainedRequest struct {
	done chan struct{}
}

// Dispatcher owns the set of live requests and the per-base-key chains of
// spec §4.6's `requests`/`request_keys` maps.
type Dispatcher struct {
	h        *handler.Handler
	tracker  ActivityTracker
	caches   map[int]*cache.Cache // cache_id -> instance, per spec §6 (0=image,1=thumb,2=fail)

	mu      sync.Mutex
	inFlight int
	chains  map[string][]*chainedRequest
}

// New builds a Dispatcher wired to h for request handling, tracker for
// activity edges, and caches keyed by the admin cache_id convention of
// spec §6.
func New(h *handler.Handler, tracker ActivityTracker, caches map[int]*cache.Cache) *Dispatcher {
	return &Dispatcher{
		h:       h,
		tracker: tracker,
		caches:  caches,
		chains:  make(map[string][]*chainedRequest),
	}
}

// Dispatch runs req through the Handler, chaining it behind any other
// in-flight request for the same base key (spec §4.6: "if it is the first,
// call handler.begin() immediately; otherwise chain it to begin upon the
// previous handler's finished signal").
func (d *Dispatcher) Dispatch(ctx context.Context, req handler.Request) (*handler.Result, error) {
	arrived := time.Now()
	key := d.chainKey(req)

	mine := &chainedRequest{done: make(chan struct{})}

	d.mu.Lock()
	chain := d.chains[key]
	d.chains[key] = append(chain, mine)
	d.inFlight++
	if d.inFlight == 1 {
		d.tracker.EndInactivity()
	}
	mustWait := len(chain) > 0
	var predecessor *chainedRequest
	if mustWait {
		predecessor = chain[len(chain)-1]
	}
	d.mu.Unlock()

	if mustWait {
		select {
		case <-predecessor.done:
		case <-ctx.Done():
			d.finish(key, mine)
			return nil, ctx.Err()
		}
	}

	queuedTime := time.Since(arrived)
	res, err := d.h.Begin(ctx, req)
	if res != nil {
		res.QueuedTime = queuedTime
	}

	d.finish(key, mine)

	if err != nil {
		logger.Debugf("[Dispatcher] request for key %s failed: %v", key, err)
	}
	return res, err
}

func (d *Dispatcher) finish(key string, mine *chainedRequest) {
	close(mine.done)

	d.mu.Lock()
	chain := d.chains[key]
	for i, c := range chain {
		if c == mine {
			chain = append(chain[:i], chain[i+1:]...)
			break
		}
	}
	if len(chain) == 0 {
		delete(d.chains, key)
	} else {
		d.chains[key] = chain
	}

	d.inFlight--
	empty := d.inFlight == 0
	d.mu.Unlock()

	if empty {
		d.tracker.StartInactivity()
	}
}

// chainKey derives the same base key the handler will use to probe A-image,
// so chaining lines up with the cache it warms (spec §4.6 rationale: "after
// the first completion, A-image or A-thumb will be warm and successor
// handlers become cheap cache hits").
func (d *Dispatcher) chainKey(req handler.Request) string {
	switch req.Kind {
	case handler.KindThumbnail:
		return "thumb:" + req.Path
	case handler.KindAlbumArt:
		return "album:" + req.Artist + "\x00" + req.Album
	case handler.KindArtistArt:
		return "artist:" + req.Artist + "\x00" + req.Album
	default:
		return "unknown"
	}
}

// InFlight returns the number of requests currently being handled, mainly
// for tests and admin stats.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Cache ids for the admin operations of spec §6.
const (
	CacheIDImage = 0
	CacheIDThumbnail = 1
	CacheIDFailure = 2
)

// Stats returns {entries, bytes, hits, misses, histogram} for every cache
// instance, keyed by cache_id (spec §6 Stats()).
func (d *Dispatcher) Stats() (map[int]cache.Stats, error) {
	out := make(map[int]cache.Stats, len(d.caches))
	for id, c := range d.caches {
		s, err := c.Stats()
		if err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, nil
}

// ClearStats implements spec §6's ClearStats(cache_id).
func (d *Dispatcher) ClearStats(cacheID int) error {
	c, ok := d.caches[cacheID]
	if !ok {
		return errUnknownCacheID(cacheID)
	}
	c.ClearStats()
	return nil
}

// Clear implements spec §6's Clear(cache_id).
func (d *Dispatcher) Clear(cacheID int) error {
	c, ok := d.caches[cacheID]
	if !ok {
		return errUnknownCacheID(cacheID)
	}
	return c.Clear()
}

// Compact implements spec §6's Compact(cache_id).
func (d *Dispatcher) Compact(cacheID int) error {
	c, ok := d.caches[cacheID]
	if !ok {
		return errUnknownCacheID(cacheID)
	}
	_, _, err := c.Compact()
	return err
}

func errUnknownCacheID(id int) error {
	return &unknownCacheIDError{id: id}
}

type unknownCacheIDError struct{ id int }

func (e *unknownCacheIDError) Error() string {
	return fmt.Sprintf("dispatcher: unknown cache_id %d", e.id)
}

// Package transport implements the out-of-scope-per-spec IPC layer's
// stand-in: an HTTP server exposing spec §6's methods as routes, replying
// with an anonymous-temp-file-backed stream on success and a JSON error
// body shaped like the original's IPC error domain on failure.
package transport

import (
	"net/http"
	"strconv"

	"github.com/sashko-guz/thumbnailerd/internal/dispatcher"
	"github.com/sashko-guz/thumbnailerd/internal/handler"
	"github.com/sashko-guz/thumbnailerd/internal/logger"
)

// Server wires the dispatcher to an http.Handler implementing spec §6.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	requestShutdown func()
	mux        *http.ServeMux
}

// NewServer builds a Server. requestShutdown is invoked by both the
// inactivity monitor's expiry and the admin Shutdown route; spec §8 requires
// it to be idempotent, which cmd/thumbnailerd's shutdown wiring provides.
func NewServer(d *dispatcher.Dispatcher, requestShutdown func()) *Server {
	s := &Server{dispatcher: d, requestShutdown: requestShutdown}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/thumbnail", s.handleThumbnail)
	mux.HandleFunc("/v1/album-art", s.handleAlbumArt)
	mux.HandleFunc("/v1/artist-art", s.handleArtistArt)
	mux.HandleFunc("/v1/admin/stats", s.handleStats)
	mux.HandleFunc("/v1/admin/clear-stats", s.handleClearStats)
	mux.HandleFunc("/v1/admin/clear", s.handleClear)
	mux.HandleFunc("/v1/admin/compact", s.handleCompact)
	mux.HandleFunc("/v1/admin/shutdown", s.handleShutdown)
	s.mux = mux

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := handler.Request{
		Kind: handler.KindThumbnail,
		Path: q.Get("path"),
		Peer: r.RemoteAddr,
	}
	req.Width, req.Height = parseSize(q)
	s.serve(w, r, req)
}

func (s *Server) handleAlbumArt(w http.ResponseWriter, r *http.Request) {
	s.serveArt(w, r, handler.KindAlbumArt)
}

func (s *Server) handleArtistArt(w http.ResponseWriter, r *http.Request) {
	s.serveArt(w, r, handler.KindArtistArt)
}

func (s *Server) serveArt(w http.ResponseWriter, r *http.Request, kind handler.Kind) {
	q := r.URL.Query()
	req := handler.Request{
		Kind:   kind,
		Artist: q.Get("artist"),
		Album:  q.Get("album"),
		Peer:   r.RemoteAddr,
	}
	req.Width, req.Height = parseSize(q)
	s.serve(w, r, req)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, req handler.Request) {
	res, err := s.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := fdreply(w, res.Bytes); err != nil {
		logger.Errorf("[Transport] streaming reply: %v", err)
	}
}

// namedPresets are the two physical thumbnail sizes the original daemon
// produced unconditionally (ThumbnailSize::normal/large); callers here opt
// into one with size=small|large instead of literal w/h.
var namedPresets = map[string][2]int{
	"small": {128, 128},
	"large": {256, 256},
}

func parseSize(q map[string][]string) (int, int) {
	w, _ := strconv.Atoi(first(q, "w"))
	h, _ := strconv.Atoi(first(q, "h"))
	if w == 0 && h == 0 {
		if preset, ok := namedPresets[first(q, "size")]; ok {
			return preset[0], preset[1]
		}
	}
	return w, h
}

func first(q map[string][]string, key string) string {
	v := q[key]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (s *Server) cacheIDFromQuery(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("cache")
	switch raw {
	case "image":
		return dispatcher.CacheIDImage, true
	case "thumbnail":
		return dispatcher.CacheIDThumbnail, true
	case "failure":
		return dispatcher.CacheIDFailure, true
	default:
		id, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false
		}
		return id, true
	}
}

package artsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteDownloaderOkReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("size") != "350" {
			t.Errorf("expected album size 350, got %s", r.URL.Query().Get("size"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	d := NewRemoteDownloader(srv.URL, "", "key")
	res, err := d.Job(RemoteRequest{Kind: KindAlbum, Artist: "Artist", Album: "Album"}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Outcome != Ok || string(res.Bytes) != "jpeg-bytes" {
		t.Fatalf("got %+v, want Ok with body", res)
	}
}

func TestRemoteDownloaderNotFoundOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewRemoteDownloader("", srv.URL, "key")
	res, err := d.Job(RemoteRequest{Kind: KindArtist, Artist: "Artist"}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Outcome != NotFound {
		t.Fatalf("Outcome = %v, want NotFound", res.Outcome)
	}
}

func TestRemoteDownloaderTransientOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewRemoteDownloader(srv.URL, "", "key")
	res, err := d.Job(RemoteRequest{Kind: KindAlbum, Artist: "Artist", Album: "Album"}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Outcome != Transient {
		t.Fatalf("Outcome = %v, want Transient", res.Outcome)
	}
}

func TestRemoteDownloaderMissingAPIRootErrors(t *testing.T) {
	d := NewRemoteDownloader("", "", "key")
	_, err := d.Job(RemoteRequest{Kind: KindAlbum, Artist: "a", Album: "b"}).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected an error when no API root is configured for the request kind")
	}
}

func TestKindAPISize(t *testing.T) {
	if KindAlbum.apiSize() != 350 {
		t.Fatalf("KindAlbum.apiSize() = %d, want 350", KindAlbum.apiSize())
	}
	if KindArtist.apiSize() != 300 {
		t.Fatalf("KindArtist.apiSize() = %d, want 300", KindArtist.apiSize())
	}
}

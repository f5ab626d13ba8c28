package handler

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalBaseKeyStableForUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(path, []byte("image bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	k1, err := localBaseKey(path)
	if err != nil {
		t.Fatalf("localBaseKey: %v", err)
	}
	k2, err := localBaseKey(path)
	if err != nil {
		t.Fatalf("localBaseKey: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("expected stable key for unchanged file, got %q != %q", k1, k2)
	}
}

func TestLocalBaseKeyChangesOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	k1, err := localBaseKey(path)
	if err != nil {
		t.Fatalf("localBaseKey: %v", err)
	}

	// Force a distinct mtime; some filesystems coalesce fast back-to-back
	// writes onto the same nanosecond-granularity timestamp.
	future := time.Now().Add(2 * time.Second)
	if err := os.WriteFile(path, []byte("v2-longer"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	k2, err := localBaseKey(path)
	if err != nil {
		t.Fatalf("localBaseKey: %v", err)
	}
	if k1 == k2 {
		t.Fatal("expected base key to change after content/mtime change")
	}
}

func TestLocalBaseKeyMissingFile(t *testing.T) {
	if _, err := localBaseKey(filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestRemoteBaseKeyNormalizesCaseAndUnicode(t *testing.T) {
	// "é" as a single codepoint vs. "e" + combining acute must normalize
	// identically under NFKC, and the comparison must be case-insensitive.
	a := remoteBaseKey("album", "Café", "Amnésiac")
	b := remoteBaseKey("album", "café", "amnésiac")
	if a != b {
		t.Fatalf("expected NFKC+case normalization to unify keys, got %q vs %q", a, b)
	}
}

func TestRemoteBaseKeyDistinguishesKindAndContent(t *testing.T) {
	album := remoteBaseKey("album", "Radiohead", "Kid A")
	artist := remoteBaseKey("artist", "Radiohead", "Kid A")
	other := remoteBaseKey("album", "Radiohead", "OK Computer")

	if album == artist {
		t.Fatal("album and artist kinds must not collide")
	}
	if album == other {
		t.Fatal("different albums must not collide")
	}
}

func TestDerivedKeyIncludesLiteralZeroes(t *testing.T) {
	k := derivedKey("base", 0, 0)
	if k != "base@0x0" {
		t.Fatalf("derivedKey(base, 0, 0) = %q, want %q", k, "base@0x0")
	}

	k2 := derivedKey("base", 100, 0)
	if k2 != "base@100x0" {
		t.Fatalf("derivedKey(base, 100, 0) = %q, want %q", k2, "base@100x0")
	}
}

func TestClampSizeBoundsToMaxAndNeverNegative(t *testing.T) {
	cases := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{100, 100, 1920, 100, 100},
		{5000, 5000, 1920, 1920, 1920},
		{-5, -5, 1920, 0, 0},
		{0, 0, 1920, 0, 0},
		{0, 300, 1920, 0, 300},
	}
	for _, tc := range cases {
		w, h := clampSize(tc.w, tc.h, tc.max)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("clampSize(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tc.w, tc.h, tc.max, w, h, tc.wantW, tc.wantH)
		}
	}
}

package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/text/unicode/norm"
)

// localBaseKey derives the A-image cache key for a local file: absolute
// path plus a content fingerprint (device, inode, size, mtime with
// nanosecond resolution), per spec §3. Binding the fingerprint into the key
// means a later lookup against a mutated file simply misses — the old entry
// ages out naturally (spec §4.1).
func localBaseKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("handler: resolving path %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		// Platforms without syscall.Stat_t (non-Unix) fall back to size +
		// mtime only; still correct, just coarser than inode+device.
		return fmt.Sprintf("local:%s:%d:%d", abs, info.Size(), info.ModTime().UnixNano()), nil
	}

	return fmt.Sprintf("local:%s:dev%d:ino%d:%d:%d", abs, stat.Dev, stat.Ino, info.Size(), statMtimeNanos(stat)), nil
}

// remoteBaseKey derives the A-image cache key for remote art: a stable
// lowercase, NFKC-normalized concatenation of artist and album (spec §3,
// resolved per spec §9's open question — see DESIGN.md). Grounded on
// original_source's g_utf8_normalize(..., G_NORMALIZE_ALL), which is glib's
// NFKC form.
func remoteBaseKey(kindPrefix, artist, album string) string {
	normalized := norm.NFKC.String(strings.ToLower(artist) + "\x00" + strings.ToLower(album))
	return fmt.Sprintf("%s:%s", kindPrefix, normalized)
}

// derivedKey combines a base key with the clamped target size, per spec §3
// ("base_key ⊕ target_size after clamping").
func derivedKey(baseKey string, w, h int) string {
	return fmt.Sprintf("%s@%dx%d", baseKey, w, h)
}

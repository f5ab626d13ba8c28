package transport

import (
	"fmt"
	"io"
	"net/http"
	"os"
)

// fdreply writes data to an anonymous temporary file, unlinks it while still
// open, and streams it back — the closest HTTP analogue to spec §6's "reply
// delivers a read-only file descriptor to an anonymous file containing the
// encoded JPEG". A real IPC transport would hand the fd itself across the
// bus; here the file's lifetime is scoped to this one response instead.
func fdreply(w http.ResponseWriter, data []byte) error {
	f, err := os.CreateTemp("", "thumbnailerd-reply-*")
	if err != nil {
		return fmt.Errorf("transport: creating reply file: %w", err)
	}
	// Unlink immediately: the directory entry is gone, but the descriptor
	// this process holds keeps the data alive until f is closed.
	os.Remove(f.Name())
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("transport: writing reply file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("transport: rewinding reply file: %w", err)
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	_, err = io.Copy(w, f)
	return err
}

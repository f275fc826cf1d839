package privacy

import (
	"io"
	"sync"
)

// Writer redacts every chunk before passing it on. Secrets must not be split
// across writes, so callers write whole lines.
type Writer struct {
	mu  sync.Mutex
	dst io.Writer
	r   *Redactor
}

// NewWriter wraps dst. A nil redactor passes text through unchanged.
func NewWriter(dst io.Writer, r *Redactor) *Writer {
	return &Writer{dst: dst, r: r}
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.dst, w.r.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}

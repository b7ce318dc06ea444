// Package history owns the ordered list of lines the user has entered and
// its persistence: one entry per line, chronological order, no escaping.
package history

import (
	"os"
	"strings"

	"github.com/spf13/afero"
)

// History is an in-memory line list with a checkpoint marking how much of it
// has already been persisted. It is not safe for concurrent use; the shell is
// single-threaded at its own control level.
type History struct {
	fs         afero.Fs
	entries    []string
	checkpoint int
	limit      int
}

// New creates an empty history backed by fs. limit bounds the number of
// retained entries; zero or negative means unbounded.
func New(fs afero.Fs, limit int) *History {
	return &History{fs: fs, limit: limit}
}

// Add appends one raw line, evicting the oldest entries beyond the limit.
func (h *History) Add(line string) {
	h.entries = append(h.entries, line)
	if h.limit > 0 && len(h.entries) > h.limit {
		drop := len(h.entries) - h.limit
		h.entries = h.entries[drop:]
		h.checkpoint -= drop
		if h.checkpoint < 0 {
			h.checkpoint = 0
		}
	}
}

// Entries returns a copy of all entries in chronological order.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Tail returns the last n entries and the index of the first returned entry.
// A negative n returns everything.
func (h *History) Tail(n int) (start int, entries []string) {
	if n < 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	start = len(h.entries) - n
	return start, h.Entries()[start:]
}

// Len reports the number of retained entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Load replaces the history list with the contents of the named file and
// checkpoints, so a following append writes only newer entries.
func (h *History) Load(path string) error {
	data, err := afero.ReadFile(h.fs, path)
	if err != nil {
		return err
	}

	h.entries = nil
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		if line != "" {
			h.entries = append(h.entries, line)
		}
	}
	h.checkpoint = len(h.entries)
	return nil
}

// Write stores the whole history list to the named file, overwriting it, and
// checkpoints.
func (h *History) Write(path string) error {
	if err := afero.WriteFile(h.fs, path, []byte(h.render(h.entries)), 0600); err != nil {
		return err
	}
	h.checkpoint = len(h.entries)
	return nil
}

// AppendSince appends entries recorded after the last checkpoint to the named
// file and advances the checkpoint. Appending nothing is a no-op that leaves
// the file untouched.
func (h *History) AppendSince(path string) error {
	fresh := h.entries[h.checkpoint:]
	if len(fresh) == 0 {
		return nil
	}

	fd, err := h.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer fd.Close()

	if _, err := fd.WriteString(h.render(fresh)); err != nil {
		return err
	}
	h.checkpoint = len(h.entries)
	return nil
}

func (h *History) render(entries []string) string {
	if len(entries) == 0 {
		return ""
	}
	return strings.Join(entries, "\n") + "\n"
}

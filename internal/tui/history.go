package tui

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// maxHistory bounds the persisted input history
const maxHistory = 200

// history holds the submitted input lines per mode
type history struct {
	Search []string `json:"search,omitempty"`
	Olea   []string `json:"olea,omitempty"`
}

func (h *history) lines(mode Mode) *[]string {
	if mode == ModeOlea {
		return &h.Olea
	}
	return &h.Search
}

// add appends line unless it repeats the previous entry
func (h *history) add(mode Mode, line string) {
	lines := h.lines(mode)
	if n := len(*lines); n > 0 && (*lines)[n-1] == line {
		return
	}
	*lines = append(*lines, line)
	if len(*lines) > maxHistory {
		*lines = (*lines)[len(*lines)-maxHistory:]
	}
}

// loadHistory reads the history file. A missing file yields an empty
// history.
func loadHistory(path string) (*history, error) {
	h := &history{}
	if path == "" {
		return h, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(data, h); err != nil {
		return &history{}, err
	}
	return h, nil
}

// saveHistory replaces the history file atomically
func saveHistory(path string, h *history) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

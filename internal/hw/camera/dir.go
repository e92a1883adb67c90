package camera

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cjeanneret/TurretGo/internal/debug"
)

// Dir replays the JPEG files of a directory in name order, looping forever.
// It is used to test detection on recorded footage without a camera attached.
type Dir struct {
	mu    sync.Mutex
	files []string
	next  int
	held  bool
}

// OpenDir lists the .jpg/.jpeg files in dir.
func OpenDir(dir string) (*Dir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no JPEG files in %s", dir)
	}
	sort.Strings(files)
	debug.Info("Dir camera: %d frames from %s", len(files), dir)
	return &Dir{files: files}, nil
}

func (d *Dir) Acquire() (*Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held {
		debug.Info("Dir camera: frame acquired while previous one is still held")
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)

	data, err := os.ReadFile(path)
	if err != nil {
		debug.Error(fmt.Errorf("dir camera: %w", err))
		return nil, false
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		debug.Verbose("Dir camera: skipping %s: %v", path, err)
		return nil, false
	}
	d.held = true
	return &Frame{Width: cfg.Width, Height: cfg.Height, Format: JPEG, Data: data}, true
}

func (d *Dir) Release(f *Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.held = false
	f.Data = nil
}

func (d *Dir) Close() error { return nil }

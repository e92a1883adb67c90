// Package storage keeps the turret's event log and saved frames on disk.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/TurretGo/internal/logic/turret"
)

const (
	logFileName = "turret.log"
	framesDir   = "frames"
)

// ErrBadName is returned for frame names that are empty or contain a path.
var ErrBadName = errors.New("storage: invalid frame name")

// Recorder appends log lines and stores frames under a root directory.
type Recorder struct {
	mu  sync.Mutex
	dir string
	log *os.File
	now func() time.Time
}

// Open creates dir (and its frames subdirectory) if needed and opens the log for appending.
func Open(dir string) (*Recorder, error) {
	if dir == "" {
		return nil, errors.New("storage: empty directory")
	}
	if err := os.MkdirAll(filepath.Join(dir, framesDir), 0o755); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open log: %w", err)
	}
	return &Recorder{dir: dir, log: f, now: time.Now}, nil
}

// Dir returns the root directory.
func (r *Recorder) Dir() string { return r.dir }

// IsPresent reports whether the root directory is still reachable.
func (r *Recorder) IsPresent() bool {
	st, err := os.Stat(r.dir)
	return err == nil && st.IsDir()
}

// AppendLog writes one timestamped line.
func (r *Recorder) AppendLog(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil {
		return fs.ErrClosed
	}
	line := r.now().UTC().Format(time.RFC3339) + " " + strings.TrimRight(msg, "\n") + "\n"
	_, err := r.log.WriteString(line)
	return err
}

// SaveFrame writes data to frames/name. The file appears atomically.
func (r *Recorder) SaveFrame(data []byte, name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	dst := filepath.Join(r.dir, framesDir, name)
	tmp, err := os.CreateTemp(filepath.Join(r.dir, framesDir), ".partial-*")
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// UsedSpace returns the total size in bytes of the files under the root.
func (r *Recorder) UsedSpace() (int64, error) {
	var total int64
	err := filepath.WalkDir(r.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Record implements turret.Sink.
func (r *Recorder) Record(ev turret.Event) error {
	if ev.ModeChanged {
		return r.AppendLog(fmt.Sprintf("mode %s direction %s", ev.Mode, ev.Pair))
	}
	obs := ev.Observation
	if ev.Mode == turret.Autonomous && obs.Detected {
		return r.AppendLog(fmt.Sprintf("direction %s centroid=(%d,%d) pixels=%d",
			ev.Pair, obs.CentroidX, obs.CentroidY, obs.PixelCount))
	}
	return r.AppendLog(fmt.Sprintf("direction %s mode %s", ev.Pair, ev.Mode))
}

// Close closes the log file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil {
		return nil
	}
	err := r.log.Close()
	r.log = nil
	return err
}

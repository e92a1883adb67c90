package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/TurretGo/internal/logic/detection"
	"github.com/cjeanneret/TurretGo/internal/logic/direction"
	"github.com/cjeanneret/TurretGo/internal/logic/turret"
)

func openTest(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "sd"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { r.Close() })
	return r
}

func readLog(t *testing.T, r *Recorder) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.Dir(), logFileName))
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestOpen_EmptyDir(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") succeeded")
	}
}

func TestAppendLog(t *testing.T) {
	r := openTest(t)
	if err := r.AppendLog("booted\n"); err != nil {
		t.Fatal(err)
	}
	if err := r.AppendLog("second"); err != nil {
		t.Fatal(err)
	}
	lines := readLog(t, r)
	want := []string{"2024-05-01T12:00:00Z booted", "2024-05-01T12:00:00Z second"}
	if len(lines) != 2 || lines[0] != want[0] || lines[1] != want[1] {
		t.Errorf("log = %q, want %q", lines, want)
	}
}

func TestAppendLog_AfterClose(t *testing.T) {
	r := openTest(t)
	r.Close()
	if err := r.AppendLog("late"); err == nil {
		t.Error("AppendLog after Close succeeded")
	}
}

func TestSaveFrame(t *testing.T) {
	r := openTest(t)
	if err := r.SaveFrame([]byte{0xFF, 0xD8, 0xFF}, "frame_1.jpg"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(r.Dir(), framesDir, "frame_1.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 {
		t.Errorf("saved %d bytes, want 3", len(data))
	}
	entries, _ := os.ReadDir(filepath.Join(r.Dir(), framesDir))
	if len(entries) != 1 {
		t.Errorf("frames dir has %d entries, want 1 (no leftovers)", len(entries))
	}
}

func TestSaveFrame_BadNames(t *testing.T) {
	r := openTest(t)
	for _, name := range []string{"", ".", "..", "../escape.jpg", "sub/frame.jpg", `a\b.jpg`} {
		if err := r.SaveFrame([]byte{1}, name); !errors.Is(err, ErrBadName) {
			t.Errorf("SaveFrame(%q) = %v, want ErrBadName", name, err)
		}
	}
}

func TestUsedSpace(t *testing.T) {
	r := openTest(t)
	r.SaveFrame(make([]byte, 100), "a.gray")
	r.SaveFrame(make([]byte, 50), "b.gray")
	r.AppendLog("x")
	got, err := r.UsedSpace()
	if err != nil {
		t.Fatal(err)
	}
	logLen := int64(len("2024-05-01T12:00:00Z x\n"))
	if want := 150 + logLen; got != want {
		t.Errorf("UsedSpace = %d, want %d", got, want)
	}
}

func TestIsPresent(t *testing.T) {
	r := openTest(t)
	if !r.IsPresent() {
		t.Error("IsPresent = false for existing dir")
	}
	r.Close()
	os.RemoveAll(r.Dir())
	if r.IsPresent() {
		t.Error("IsPresent = true after removal")
	}
}

func TestRecord(t *testing.T) {
	r := openTest(t)
	events := []turret.Event{
		{Mode: turret.Manual, ModeChanged: true},
		{Mode: turret.Manual, Pair: direction.Pair{X: direction.Right}},
		{
			Mode:        turret.Autonomous,
			Pair:        direction.Pair{X: direction.Left, Y: direction.Down},
			Observation: detection.Observation{Detected: true, CentroidX: 40, CentroidY: 200, PixelCount: 1200},
		},
	}
	for _, ev := range events {
		if err := r.Record(ev); err != nil {
			t.Fatal(err)
		}
	}
	lines := readLog(t, r)
	want := []string{
		"2024-05-01T12:00:00Z mode USER_MANUAL direction (None, None)",
		"2024-05-01T12:00:00Z direction (Right, None) mode USER_MANUAL",
		"2024-05-01T12:00:00Z direction (Left, Down) centroid=(40,200) pixels=1200",
	}
	if len(lines) != len(want) {
		t.Fatalf("log = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

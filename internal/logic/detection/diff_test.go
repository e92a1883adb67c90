package detection

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cjeanneret/TurretGo/internal/hw/camera"
	"github.com/cjeanneret/TurretGo/internal/logic/direction"
)

const (
	frameW = 320
	frameH = 240
)

// rect is an inclusive-exclusive pixel block.
type rect struct{ x0, y0, x1, y1 int }

// grayFrame returns a black frame with the given blocks at full brightness.
func grayFrame(w, h int, blocks ...rect) *camera.Frame {
	data := make([]byte, w*h)
	for _, r := range blocks {
		for y := r.y0; y < r.y1; y++ {
			for x := r.x0; x < r.x1; x++ {
				data[y*w+x] = 255
			}
		}
	}
	return &camera.Frame{Width: w, Height: h, Format: camera.Grayscale, Data: data}
}

func jpegFrame(t *testing.T, f *camera.Frame) *camera.Frame {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	copy(img.Pix, f.Data)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return &camera.Frame{Width: f.Width, Height: f.Height, Format: camera.JPEG, Data: buf.Bytes()}
}

func rgb565Frame(f *camera.Frame) *camera.Frame {
	data := make([]byte, 2*len(f.Data))
	for i, v := range f.Data {
		p := Pack565(v, v, v)
		data[2*i] = byte(p >> 8)
		data[2*i+1] = byte(p)
	}
	return &camera.Frame{Width: f.Width, Height: f.Height, Format: camera.RGB565, Data: data}
}

// primed returns a detector that has already stored a black frame.
func primed(t *testing.T) *Diff {
	t.Helper()
	d := NewDiff(DefaultConfig())
	if got := d.Observe(grayFrame(frameW, frameH)); got != direction.None {
		t.Fatalf("first frame gave %v", got)
	}
	return d
}

func TestDiff_FirstFrameOnlyStored(t *testing.T) {
	d := NewDiff(DefaultConfig())
	got := d.Observe(grayFrame(frameW, frameH, rect{0, 0, 100, 100}))
	if got != direction.None {
		t.Errorf("first frame = %v, want (None, None)", got)
	}
	if diff := cmp.Diff(Observation{}, d.LastObservation()); diff != "" {
		t.Errorf("observation mismatch (-want +got):\n%s", diff)
	}
}

func TestDiff_IdenticalFrames(t *testing.T) {
	d := NewDiff(DefaultConfig())
	f := grayFrame(frameW, frameH, rect{50, 50, 150, 150})
	d.Observe(f)
	if got := d.Observe(f); got != direction.None {
		t.Errorf("identical frames = %v, want (None, None)", got)
	}
	if obs := d.LastObservation(); obs != (Observation{}) {
		t.Errorf("identical frames observation = %+v, want zero", obs)
	}
}

func TestDiff_Directions(t *testing.T) {
	cases := []struct {
		name  string
		block rect
		want  direction.Pair
	}{
		{"centre block", rect{110, 70, 210, 170}, direction.None},
		{"left block", rect{0, 70, 100, 170}, direction.Pair{X: direction.Left}},
		{"right block", rect{220, 70, 320, 170}, direction.Pair{X: direction.Right}},
		{"top right block", rect{220, 0, 320, 60}, direction.Pair{X: direction.Right, Y: direction.Up}},
		{"lower left block", rect{0, 180, 100, 240}, direction.Pair{X: direction.Left, Y: direction.Down}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := primed(t)
			got := d.Observe(grayFrame(frameW, frameH, tc.block))
			if got != tc.want {
				t.Errorf("Observe = %v, want %v (obs %+v)", got, tc.want, d.LastObservation())
			}
		})
	}
}

func TestDiff_CentreBlockObservation(t *testing.T) {
	d := primed(t)
	d.Observe(grayFrame(frameW, frameH, rect{110, 70, 210, 170}))
	want := Observation{
		Detected:    true,
		CentroidX:   159,
		CentroidY:   119,
		FrameWidth:  frameW,
		FrameHeight: frameH,
		PixelCount:  10000,
	}
	if diff := cmp.Diff(want, d.LastObservation()); diff != "" {
		t.Errorf("observation mismatch (-want +got):\n%s", diff)
	}
}

func TestDiff_MotionThresholdGating(t *testing.T) {
	d := primed(t)
	// 20x20 = 400 px, below the 800 px minimum.
	if got := d.Observe(grayFrame(frameW, frameH, rect{0, 100, 20, 120})); got != direction.None {
		t.Errorf("small motion = %v, want (None, None)", got)
	}
	if obs := d.LastObservation(); obs != (Observation{}) {
		t.Errorf("small motion observation = %+v, want zero", obs)
	}
}

func TestDiff_NoMotionClearsObservation(t *testing.T) {
	d := primed(t)
	moved := grayFrame(frameW, frameH, rect{0, 70, 100, 170})
	d.Observe(moved)
	if obs := d.LastObservation(); !obs.Detected || obs.FrameWidth != frameW || obs.FrameHeight != frameH {
		t.Fatalf("detection observation = %+v", obs)
	}
	d.Observe(moved)
	if obs := d.LastObservation(); obs != (Observation{}) {
		t.Errorf("still scene after a detection = %+v, want zero", obs)
	}
}

func TestDiff_BottomEdgeRejection(t *testing.T) {
	// Rows 225..239 are inside the bottom 10% band (y > 216).
	d := primed(t)
	got := d.Observe(grayFrame(frameW, frameH, rect{130, 225, 190, 240})) // 60x15 = 900 px
	if got != direction.None {
		t.Errorf("900 px at bottom edge = %v, want (None, None)", got)
	}
	if obs := d.LastObservation(); obs != (Observation{}) {
		t.Errorf("edge noise observation = %+v, want zero", obs)
	}

	d = primed(t)
	got = d.Observe(grayFrame(frameW, frameH, rect{100, 225, 220, 240})) // 120x15 = 1800 px
	if want := (direction.Pair{Y: direction.Down}); got != want {
		t.Errorf("1800 px at bottom edge = %v, want %v", got, want)
	}
}

func TestDiff_SideEdgeRejection(t *testing.T) {
	d := primed(t)
	// 10x100 = 1000 px hugging the left border (x < 16).
	if got := d.Observe(grayFrame(frameW, frameH, rect{0, 70, 10, 170})); got != direction.None {
		t.Errorf("left edge noise = %v, want (None, None)", got)
	}
}

func TestDiff_PreviousFollowsCurrent(t *testing.T) {
	d := primed(t)
	moved := grayFrame(frameW, frameH, rect{0, 70, 100, 170})
	if got := d.Observe(moved); got.X != direction.Left {
		t.Fatalf("first motion = %v", got)
	}
	// Same frame again: nothing changed since the last one.
	if got := d.Observe(moved); got != direction.None {
		t.Errorf("repeated frame = %v, want (None, None)", got)
	}
}

func TestDiff_NilFrame(t *testing.T) {
	d := primed(t)
	d.Observe(grayFrame(frameW, frameH, rect{0, 70, 100, 170}))
	before := d.LastObservation()
	if got := d.Observe(nil); got != direction.None {
		t.Errorf("nil frame = %v", got)
	}
	if diff := cmp.Diff(before, d.LastObservation()); diff != "" {
		t.Errorf("nil frame changed observation:\n%s", diff)
	}
}

func TestDiff_MalformedFramesKeepBuffers(t *testing.T) {
	bad := []*camera.Frame{
		{Width: frameW, Height: frameH, Format: camera.Grayscale, Data: make([]byte, 100)},
		{Width: 0, Height: frameH, Format: camera.Grayscale, Data: make([]byte, 10)},
		{Width: frameW, Height: frameH, Format: camera.Grayscale},
		{Width: frameW, Height: frameH, Format: camera.RGB565, Data: make([]byte, frameW*frameH)},
		{Width: frameW, Height: frameH, Format: camera.PixelFormat(42), Data: make([]byte, frameW*frameH)},
	}
	for i, f := range bad {
		d := primed(t)
		if got := d.Observe(f); got != direction.None {
			t.Errorf("bad frame %d = %v", i, got)
		}
		if !errors.Is(d.Err(), ErrBadFrame) {
			t.Errorf("bad frame %d: Err() = %v, want ErrBadFrame", i, d.Err())
		}
		// The black reference frame must still be there.
		if got := d.Observe(grayFrame(frameW, frameH, rect{0, 70, 100, 170})); got.X != direction.Left {
			t.Errorf("after bad frame %d: %v, want Left", i, got)
		}
	}
}

func TestDiff_DecodeFailureKeepsBuffers(t *testing.T) {
	d := primed(t)
	garbage := &camera.Frame{Width: frameW, Height: frameH, Format: camera.JPEG, Data: []byte("not a jpeg")}
	if got := d.Observe(garbage); got != direction.None {
		t.Errorf("garbage = %v", got)
	}
	if !errors.Is(d.Err(), ErrDecode) {
		t.Errorf("Err() = %v, want ErrDecode", d.Err())
	}
	if got := d.Observe(grayFrame(frameW, frameH, rect{220, 70, 320, 170})); got.X != direction.Right {
		t.Errorf("after decode failure: %v, want Right", got)
	}
	if d.Err() != nil {
		t.Errorf("Err() after good frame = %v", d.Err())
	}
}

func TestDiff_BufferBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBufferBytes = 5 * 160 * 120
	d := NewDiff(cfg)

	if got := d.Observe(grayFrame(frameW, frameH)); got != direction.None {
		t.Errorf("over budget = %v", got)
	}
	if !errors.Is(d.Err(), ErrBufferBudget) {
		t.Fatalf("Err() = %v, want ErrBufferBudget", d.Err())
	}
	if w, _, m := d.DiffMap(nil); w != 0 || m != nil {
		t.Error("buffers allocated despite budget")
	}

	d.Observe(grayFrame(160, 120))
	if d.Err() != nil {
		t.Errorf("frame within budget failed: %v", d.Err())
	}
}

func TestDiff_SizeChangeReinitializes(t *testing.T) {
	d := primed(t)
	got := d.Observe(grayFrame(160, 120, rect{0, 0, 80, 120}))
	if got != direction.None {
		t.Errorf("first frame of new size = %v, want (None, None)", got)
	}
	if obs := d.LastObservation(); obs != (Observation{}) {
		t.Errorf("observation after resize = %+v", obs)
	}
	cfg := DefaultConfig()
	cfg.MotionThreshold = 100
	cfg.CenterDeadzone = 20
	d.cfg = cfg
	if got := d.Observe(grayFrame(160, 120)); got.X != direction.Left {
		t.Errorf("diff at new size = %v, want Left", got)
	}
}

func TestDiff_JPEGFrames(t *testing.T) {
	d := NewDiff(DefaultConfig())
	d.Observe(jpegFrame(t, grayFrame(frameW, frameH)))
	got := d.Observe(jpegFrame(t, grayFrame(frameW, frameH, rect{0, 70, 100, 170})))
	if got != (direction.Pair{X: direction.Left}) {
		t.Errorf("JPEG left block = %v, want (Left, None); obs %+v", got, d.LastObservation())
	}
	obs := d.LastObservation()
	if obs.CentroidX < 40 || obs.CentroidX > 60 {
		t.Errorf("centroid x = %d, want near 49", obs.CentroidX)
	}
}

func TestDiff_JPEGSizeMismatch(t *testing.T) {
	d := NewDiff(DefaultConfig())
	f := jpegFrame(t, grayFrame(frameW, frameH))
	f.Width = 640
	d.Observe(f)
	if !errors.Is(d.Err(), ErrBadFrame) {
		t.Errorf("Err() = %v, want ErrBadFrame", d.Err())
	}
}

func TestDiff_RGB565Frames(t *testing.T) {
	d := NewDiff(DefaultConfig())
	d.Observe(rgb565Frame(grayFrame(frameW, frameH)))
	got := d.Observe(rgb565Frame(grayFrame(frameW, frameH, rect{220, 70, 320, 170})))
	if got != (direction.Pair{X: direction.Right}) {
		t.Errorf("RGB565 right block = %v, want (Right, None)", got)
	}
}

func TestDiff_DiffMapIsCopy(t *testing.T) {
	d := primed(t)
	d.Observe(grayFrame(frameW, frameH, rect{0, 0, 10, 10}))
	w, h, m := d.DiffMap(nil)
	if w != frameW || h != frameH || len(m) != frameW*frameH {
		t.Fatalf("DiffMap = %dx%d, %d bytes", w, h, len(m))
	}
	if m[0] != 255 || m[frameW*frameH-1] != 0 {
		t.Errorf("diff map values %d/%d, want 255/0", m[0], m[frameW*frameH-1])
	}
	m[0] = 7
	if _, _, again := d.DiffMap(nil); again[0] != 255 {
		t.Error("DiffMap exposes the internal buffer")
	}
}

func TestLuma565(t *testing.T) {
	cases := []struct {
		p    uint16
		want uint8
	}{
		{0x0000, 0},
		{0xFFFF, 250},
		{0xF800, 74},  // pure red: 77*248>>8
		{0x07E0, 147}, // pure green: 150*252>>8
		{0x001F, 28},  // pure blue: 29*248>>8
		{Pack565(128, 128, 128), 128},
	}
	for _, tc := range cases {
		if got := Luma565(tc.p); got != tc.want {
			t.Errorf("Luma565(%#04x) = %d, want %d", tc.p, got, tc.want)
		}
	}
}

func TestRandom(t *testing.T) {
	r := NewRandom(1)
	if got := r.Observe(nil); got != direction.None {
		t.Errorf("nil frame = %v", got)
	}
	f := grayFrame(32, 24)
	seen := map[direction.Pair]bool{}
	for i := 0; i < 200; i++ {
		p := r.Observe(f)
		seen[p] = true
		obs := r.LastObservation()
		if obs.Detected == p.IsNone() {
			t.Fatalf("pair %v with observation %+v", p, obs)
		}
		if obs.CentroidX >= 32 || obs.CentroidY >= 24 {
			t.Fatalf("centroid outside frame: %+v", obs)
		}
		if !obs.Detected && obs != (Observation{}) {
			t.Fatalf("no-motion observation %+v, want zero", obs)
		}
		if obs.Detected && (obs.FrameWidth != 32 || obs.FrameHeight != 24) {
			t.Fatalf("detection without frame size: %+v", obs)
		}
	}
	if len(seen) != 9 {
		t.Errorf("saw %d distinct pairs in 200 draws, want 9", len(seen))
	}

	var _ Detector = r
	var _ Detector = NewDiff(DefaultConfig())
}

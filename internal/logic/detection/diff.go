package detection

import (
	"fmt"
	"image"

	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/hw/camera"
	"github.com/cjeanneret/TurretGo/internal/logic/direction"
)

// buffers is the working set of one frame size. It is replaced as a whole
// when the frame size changes.
type buffers struct {
	w, h int
	prev []byte   // luminance of the previous frame
	curr []byte   // luminance of the frame being processed
	diff []byte   // absolute difference of the last comparison
	rgb  []uint16 // decode scratch
}

func bufferBytes(w, h int) int {
	return 3*w*h + 2*w*h
}

func newBuffers(w, h int) *buffers {
	n := w * h
	return &buffers{
		w:    w,
		h:    h,
		prev: make([]byte, n),
		curr: make([]byte, n),
		diff: make([]byte, n),
		rgb:  make([]uint16, n),
	}
}

// Diff detects motion by differencing consecutive frames.
// It is not safe for concurrent use; it belongs to the control loop.
type Diff struct {
	cfg    Config
	buf    *buffers
	primed bool // prev holds a frame
	last   Observation
	err    error
}

// NewDiff creates a detector. Buffers are allocated on the first valid frame.
func NewDiff(cfg Config) *Diff {
	return &Diff{cfg: cfg}
}

// Observe runs one detection cycle on f.
func (d *Diff) Observe(f *camera.Frame) direction.Pair {
	if f == nil {
		return direction.None
	}
	obs, err := d.observe(f)
	d.last = obs
	if err != nil {
		if d.err == nil || err.Error() != d.err.Error() {
			debug.Error(err)
		}
		d.err = err
		return direction.None
	}
	d.err = nil
	if !obs.Detected {
		return direction.None
	}
	pair := d.classify(obs)
	debug.Detection(obs)
	return pair
}

// LastObservation returns the result of the last cycle.
func (d *Diff) LastObservation() Observation {
	return d.last
}

// Err returns the error of the last cycle, or nil if it completed.
func (d *Diff) Err() error {
	return d.err
}

// DiffMap copies the last difference map into dst (grown as needed).
// It returns nil when no comparison has been made yet.
func (d *Diff) DiffMap(dst []byte) (w, h int, out []byte) {
	if d.buf == nil || !d.primed {
		return 0, 0, nil
	}
	out = append(dst[:0], d.buf.diff...)
	return d.buf.w, d.buf.h, out
}

func (d *Diff) observe(f *camera.Frame) (Observation, error) {
	w, h := f.Width, f.Height
	if w <= 0 || h <= 0 || len(f.Data) == 0 {
		return Observation{}, fmt.Errorf("%w: %dx%d with %d bytes", ErrBadFrame, w, h, len(f.Data))
	}

	var img image.Image
	switch f.Format {
	case camera.JPEG:
		var err error
		if img, err = decodeJPEG(f.Data, w, h); err != nil {
			return Observation{}, err
		}
	case camera.Grayscale:
		if len(f.Data) != w*h {
			return Observation{}, fmt.Errorf("%w: grayscale %dx%d needs %d bytes, got %d", ErrBadFrame, w, h, w*h, len(f.Data))
		}
	case camera.RGB565:
		if len(f.Data) != 2*w*h {
			return Observation{}, fmt.Errorf("%w: rgb565 %dx%d needs %d bytes, got %d", ErrBadFrame, w, h, 2*w*h, len(f.Data))
		}
	default:
		return Observation{}, fmt.Errorf("%w: unsupported pixel format %v", ErrBadFrame, f.Format)
	}

	if err := d.reserve(w, h); err != nil {
		return Observation{}, err
	}
	b := d.buf

	switch f.Format {
	case camera.JPEG:
		toRGB565(img, b.rgb)
		lumaFrom565(b.rgb, b.curr)
	case camera.Grayscale:
		copy(b.curr, f.Data)
	case camera.RGB565:
		lumaFromRaw565(f.Data, b.curr)
	}

	if !d.primed {
		b.prev, b.curr = b.curr, b.prev
		d.primed = true
		debug.Verbose("Detector: first %dx%d frame stored", w, h)
		return Observation{}, nil
	}

	count, cx, cy := d.compare()
	b.prev, b.curr = b.curr, b.prev

	if count < d.cfg.MotionThreshold {
		return Observation{}, nil
	}
	if count < 2*d.cfg.MotionThreshold && d.nearEdge(cx, cy, w, h) {
		debug.Verbose("Detector: rejected %d px at (%d, %d) near edge", count, cx, cy)
		return Observation{}, nil
	}
	return Observation{
		Detected:    true,
		CentroidX:   cx,
		CentroidY:   cy,
		FrameWidth:  w,
		FrameHeight: h,
		PixelCount:  count,
	}, nil
}

// reserve makes sure buffers match w x h within the memory budget.
func (d *Diff) reserve(w, h int) error {
	if d.buf != nil && d.buf.w == w && d.buf.h == h {
		return nil
	}
	need := bufferBytes(w, h)
	if d.cfg.MaxBufferBytes > 0 && need > d.cfg.MaxBufferBytes {
		return fmt.Errorf("%w: %dx%d needs %d bytes, budget %d", ErrBufferBudget, w, h, need, d.cfg.MaxBufferBytes)
	}
	if d.buf != nil {
		debug.Info("Detector: frame size changed %dx%d -> %dx%d, reinitializing", d.buf.w, d.buf.h, w, h)
	}
	d.buf = newBuffers(w, h)
	d.primed = false
	return nil
}

// compare fills the diff map and returns the motion pixel count and the
// difference-weighted centroid.
func (d *Diff) compare() (count, cx, cy int) {
	b := d.buf
	th := d.cfg.DiffThreshold
	var sumX, sumY, sumW int64
	i := 0
	for y := 0; y < b.h; y++ {
		for x := 0; x < b.w; x++ {
			v := int(b.curr[i]) - int(b.prev[i])
			if v < 0 {
				v = -v
			}
			b.diff[i] = uint8(v)
			if v > th {
				count++
				sumX += int64(x * v)
				sumY += int64(y * v)
				sumW += int64(v)
			}
			i++
		}
	}
	if sumW == 0 {
		return count, 0, 0
	}
	return count, int(sumX / sumW), int(sumY / sumW)
}

func (d *Diff) nearEdge(cx, cy, w, h int) bool {
	edgeX := w * d.cfg.EdgeMarginPercent / 100
	edgeY := h * d.cfg.EdgeMarginPercent / 100
	bottom := h * d.cfg.BottomMarginPercent / 100
	return cy > h-bottom || cy < edgeY || cx < edgeX || cx > w-edgeX
}

func (d *Diff) classify(obs Observation) direction.Pair {
	var p direction.Pair
	centerX := obs.FrameWidth / 2
	centerY := obs.FrameHeight / 2
	dz := d.cfg.CenterDeadzone

	switch {
	case obs.CentroidX < centerX-dz:
		p.X = direction.Left
	case obs.CentroidX > centerX+dz:
		p.X = direction.Right
	}
	switch {
	case obs.CentroidY < centerY-dz:
		p.Y = direction.Up
	case obs.CentroidY > centerY+dz:
		p.Y = direction.Down
	}
	return p
}

package camera

import "sync"

// Synthetic renders grayscale frames with a bright square sweeping left and
// right over a dark background. It stands in for a camera in mock mode.
type Synthetic struct {
	mu    sync.Mutex
	w, h  int
	size  int
	x, dx int
	buf   []byte
	held  bool
}

// NewSynthetic creates a w x h source.
func NewSynthetic(w, h int) *Synthetic {
	size := h / 4
	if size < 1 {
		size = 1
	}
	return &Synthetic{w: w, h: h, size: size, dx: w / 40, buf: make([]byte, w*h)}
}

func (s *Synthetic) Acquire() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held || s.w <= 0 || s.h <= 0 {
		return nil, false
	}
	for i := range s.buf {
		s.buf[i] = 16
	}
	y0 := (s.h - s.size) / 2
	for y := y0; y < y0+s.size; y++ {
		row := s.buf[y*s.w : (y+1)*s.w]
		for x := s.x; x < s.x+s.size && x < s.w; x++ {
			row[x] = 235
		}
	}
	s.x += s.dx
	if s.x < 0 || s.x+s.size > s.w {
		s.dx = -s.dx
		s.x += 2 * s.dx
	}
	s.held = true
	return &Frame{Width: s.w, Height: s.h, Format: Grayscale, Data: s.buf}, true
}

func (s *Synthetic) Release(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = false
	f.Data = nil
}

func (s *Synthetic) Close() error { return nil }

// Scripted returns a fixed list of frames (nil entries mean "no frame") and
// counts how the acquire/release protocol was followed.
type Scripted struct {
	mu          sync.Mutex
	frames      []*Frame
	next        int
	outstanding int
	acquired    int
	released    int
	violations  int
}

// NewScripted plays frames once, then reports no frame.
func NewScripted(frames ...*Frame) *Scripted {
	return &Scripted{frames: frames}
}

func (s *Scripted) Acquire() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outstanding > 0 {
		s.violations++
	}
	if s.next >= len(s.frames) {
		return nil, false
	}
	f := s.frames[s.next]
	s.next++
	if f == nil {
		return nil, false
	}
	cp := *f
	s.outstanding++
	s.acquired++
	return &cp, true
}

func (s *Scripted) Release(*Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outstanding == 0 {
		s.violations++
		return
	}
	s.outstanding--
	s.released++
}

func (s *Scripted) Close() error { return nil }

// Counts returns acquired frames, released frames and protocol violations
// (acquire while holding a frame, or release without a frame).
func (s *Scripted) Counts() (acquired, released, violations int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired, s.released, s.violations
}

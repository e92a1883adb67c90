package camera

import (
	"errors"
	"time"
)

// errReadBusy means an earlier read has not returned yet.
var errReadBusy = errors.New("camera: read still in progress")

// timedRead runs a blocking device read in its own goroutine and gives up
// waiting after timeout. A read that outlives its caller is collected by the
// next call instead of starting a second one, so at most one read is in flight.
type timedRead struct {
	read    func() bool
	timeout time.Duration
	pending chan bool
}

func newTimedRead(read func() bool, timeout time.Duration) *timedRead {
	return &timedRead{read: read, timeout: timeout}
}

// Do returns the result of a read, or false when none finished within timeout.
func (t *timedRead) Do() bool {
	if t.pending == nil {
		ch := make(chan bool, 1)
		t.pending = ch
		go func() { ch <- t.read() }()
	}
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case ok := <-t.pending:
		t.pending = nil
		return ok
	case <-timer.C:
		return false
	}
}

// Wait blocks up to d for an in-flight read. It fails if one is still running,
// in which case the device buffers must not be freed.
func (t *timedRead) Wait(d time.Duration) error {
	if t.pending == nil {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.pending:
		t.pending = nil
		return nil
	case <-timer.C:
		return errReadBusy
	}
}

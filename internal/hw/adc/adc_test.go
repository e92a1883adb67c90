package adc

import (
	"errors"
	"testing"
)

// fakeConn answers every transfer with a canned response and records what was sent.
type fakeConn struct {
	sent  [][]byte
	reply []byte
	err   error
}

func (f *fakeConn) Tx(w, r []byte) error {
	f.sent = append(f.sent, append([]byte(nil), w...))
	if f.err != nil {
		return f.err
	}
	copy(r, f.reply)
	return nil
}

func TestMCP3208_CommandBytes(t *testing.T) {
	cases := []struct {
		ch   int
		want [3]byte
	}{
		{0, [3]byte{0x06, 0x00, 0x00}},
		{1, [3]byte{0x06, 0x40, 0x00}},
		{3, [3]byte{0x06, 0xC0, 0x00}},
		{4, [3]byte{0x07, 0x00, 0x00}},
		{7, [3]byte{0x07, 0xC0, 0x00}},
	}
	for _, tc := range cases {
		f := &fakeConn{reply: []byte{0, 0, 0}}
		m := NewMCP3208(f)
		if _, err := m.ReadChannel(tc.ch); err != nil {
			t.Fatalf("ch%d: %v", tc.ch, err)
		}
		got := f.sent[0]
		if got[0] != tc.want[0] || got[1] != tc.want[1] || got[2] != tc.want[2] {
			t.Errorf("ch%d sent % X, want % X", tc.ch, got, tc.want)
		}
	}
}

func TestMCP3208_DecodesTwelveBits(t *testing.T) {
	// High nibble of the second byte is undefined on the wire and must be masked.
	f := &fakeConn{reply: []byte{0xFF, 0xFA, 0xBC}}
	m := NewMCP3208(f)
	v, err := m.ReadChannel(2)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xABC {
		t.Errorf("ReadChannel = %#x, want 0xABC", v)
	}
}

func TestMCP3208_InvalidChannel(t *testing.T) {
	m := NewMCP3208(&fakeConn{})
	for _, ch := range []int{-1, 8} {
		if _, err := m.ReadChannel(ch); err == nil {
			t.Errorf("ReadChannel(%d) expected error", ch)
		}
	}
}

func TestMCP3208_TransferError(t *testing.T) {
	boom := errors.New("bus fault")
	m := NewMCP3208(&fakeConn{err: boom})
	if _, err := m.ReadChannel(0); !errors.Is(err, boom) {
		t.Errorf("ReadChannel error = %v, want wrapping %v", err, boom)
	}
}

func TestMock_DefaultsToMidScale(t *testing.T) {
	m := NewMock()
	m.Set(1, 100)
	if v, _ := m.ReadChannel(0); v != 2048 {
		t.Errorf("unset channel = %d, want 2048", v)
	}
	if v, _ := m.ReadChannel(1); v != 100 {
		t.Errorf("set channel = %d, want 100", v)
	}
	if m.Reads() != 2 {
		t.Errorf("Reads() = %d, want 2", m.Reads())
	}
}

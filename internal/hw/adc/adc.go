package adc

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/cjeanneret/TurretGo/internal/debug"
)

// MaxValue is the full-scale reading of a 12-bit converter.
const MaxValue = 4095

// Reader reads one single-ended analog channel.
type Reader interface {
	ReadChannel(ch int) (int, error)
}

// conn is the part of spi.Conn the MCP3208 needs.
type conn interface {
	Tx(w, r []byte) error
}

// MCP3208 is an 8-channel 12-bit SPI converter.
type MCP3208 struct {
	mu   sync.Mutex
	c    conn
	w, r [3]byte
}

// OpenMCP3208 initializes periph and connects to the converter on port.
// An empty port name opens the first SPI port found.
func OpenMCP3208(port string, freq physic.Frequency) (*MCP3208, spi.PortCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(port)
	if err != nil {
		return nil, nil, fmt.Errorf("open spi port %q: %w", port, err)
	}
	c, err := p.Connect(freq, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, nil, fmt.Errorf("connect spi: %w", err)
	}
	debug.Info("MCP3208 on SPI port %q at %s", port, freq)
	return NewMCP3208(c), p, nil
}

// NewMCP3208 wraps an established SPI connection.
func NewMCP3208(c conn) *MCP3208 {
	return &MCP3208{c: c}
}

// ReadChannel performs one single-ended conversion on ch (0-7).
func (m *MCP3208) ReadChannel(ch int) (int, error) {
	if ch < 0 || ch > 7 {
		return 0, fmt.Errorf("mcp3208: invalid channel %d", ch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// start bit, single-ended, then D2 D1 D0 straddling the first two bytes
	m.w[0] = 0x06 | byte(ch>>2)
	m.w[1] = byte(ch&0x03) << 6
	m.w[2] = 0
	if err := m.c.Tx(m.w[:], m.r[:]); err != nil {
		return 0, fmt.Errorf("mcp3208: channel %d: %w", ch, err)
	}
	v := int(m.r[1]&0x0F)<<8 | int(m.r[2])
	debug.Trace("MCP3208 ch%d = %d", ch, v)
	return v, nil
}

// Mock returns fixed per-channel values; unset channels read mid-scale.
type Mock struct {
	mu     sync.Mutex
	values map[int]int
	reads  int
}

// NewMock creates a mock converter with every channel at rest.
func NewMock() *Mock {
	return &Mock{values: make(map[int]int)}
}

// Set fixes the value ch reads back.
func (m *Mock) Set(ch, v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[ch] = v
}

// Reads returns the number of conversions performed.
func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *Mock) ReadChannel(ch int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if v, ok := m.values[ch]; ok {
		return v, nil
	}
	return (MaxValue + 1) / 2, nil
}

// Package debug is the turret's levelled logger. Everything goes through one
// log.Logger so the web status stream can receive the same lines as stdout.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

const (
	LevelOff     = 0
	LevelInfo    = 1 // mode changes, hardware setup, ignored settings
	LevelLive    = 2 // direction transitions, button presses, clients
	LevelVerbose = 3 // centroids, rejected motion, setup steps
	LevelTrace   = 4 // every GPIO access
)

var (
	mu     sync.RWMutex
	level  int
	out    io.Writer = os.Stdout
	logger *log.Logger
)

// Init sets the level (0-4). Level 0 silences everything.
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	logger = nil
	if level > LevelOff {
		logger = log.New(out, "[Turret] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects all debug output, e.g. to fan it out to web clients.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the active level.
func Level() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

func printf(minLevel int, format string, args ...interface{}) {
	mu.RLock()
	l, lg := level, logger
	mu.RUnlock()
	if l >= minLevel && lg != nil {
		lg.Printf(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	printf(LevelInfo, "[INFO] "+format, args...)
}

// Mode logs a control mode change.
func Mode(mode fmt.Stringer) {
	printf(LevelInfo, "[INFO] Control mode: %s", mode)
}

// Ignored reports a setting a component refused and kept its previous value for.
func Ignored(component, format string, args ...interface{}) {
	printf(LevelInfo, "[INFO] %s: ignoring "+format, append([]interface{}{component}, args...)...)
}

// Value logs a named setting at startup.
func Value(name string, value interface{}) {
	printf(LevelInfo, "[INFO]   %s = %v", name, value)
}

// Error logs at level 1 so failures show up whenever logging is on.
func Error(err error) {
	printf(LevelInfo, "[ERROR] %v", err)
}

func Live(format string, args ...interface{}) {
	printf(LevelLive, "[LIVE] "+format, args...)
}

// Direction logs a direction transition and who produced it.
func Direction(source string, pair fmt.Stringer) {
	printf(LevelLive, "[LIVE] %s direction: %s", source, pair)
}

func Verbose(format string, args ...interface{}) {
	printf(LevelVerbose, "[VERBOSE] "+format, args...)
}

// Detection logs a motion observation.
func Detection(obs interface{}) {
	printf(LevelVerbose, "[VERBOSE] Detection: %+v", obs)
}

func PrintStruct(name string, v interface{}) {
	printf(LevelVerbose, "[VERBOSE] %s: %+v", name, v)
}

// Section prints a banner between startup phases.
func Section(name string) {
	printf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	printf(LevelVerbose, "  %s", name)
	printf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

func Step(num int, description string) {
	printf(LevelVerbose, "[VERBOSE] Step %d: %s", num, description)
}

func Trace(format string, args ...interface{}) {
	printf(LevelTrace, "[TRACE] "+format, args...)
}

// GPIO logs one pin access.
func GPIO(operation string, pin int, value interface{}) {
	printf(LevelTrace, "[GPIO] %s pin=%d value=%v", operation, pin, value)
}

package web

import (
	"encoding/json"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/hw/camera"
	"github.com/cjeanneret/TurretGo/internal/logic/turret"
)

// maxRequestBytes bounds POST bodies and websocket messages.
const maxRequestBytes = 1 << 20

// ModeFunc requests a mode change from the control loop.
type ModeFunc func(turret.Mode)

// ViewConfig tunes the visual endpoints.
type ViewConfig struct {
	Deadzone      int           // drawn on the overlay
	JPEGQuality   int           // for raw frames on /stream
	FrameInterval time.Duration // MJPEG polling period
	PushInterval  time.Duration // websocket polling period
}

// DefaultViewConfig returns 10 fps MJPEG and 5 Hz websocket updates.
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		Deadzone:      80,
		JPEGQuality:   80,
		FrameInterval: 100 * time.Millisecond,
		PushInterval:  200 * time.Millisecond,
	}
}

// ModeRequest is the body of POST /mode and of websocket commands.
type ModeRequest struct {
	Mode string `json:"mode"` // "manual", "autonomous" or "toggle"
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Snapshots   *SnapshotStore
	SetMode     ModeFunc
	View        ViewConfig
	staticFS    fs.FS
	upgrader    websocket.Upgrader
}

// NewHandlers creates handlers with the given dependencies.
// If setMode is nil, mode requests return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, snapshots *SnapshotStore, setMode ModeFunc, view ViewConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Snapshots:   snapshots,
		SetMode:     setMode,
		View:        view,
		staticFS:    staticFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatus returns the latest snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Snapshots.Latest()
	if !ok {
		http.Error(w, "no status yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// resolveMode turns a request into a mode, resolving "toggle" against the
// latest published mode.
func (h *Handlers) resolveMode(req ModeRequest) (turret.Mode, error) {
	if req.Mode == "toggle" {
		snap, _ := h.Snapshots.Latest()
		return snap.Mode.Toggle(), nil
	}
	return turret.ParseMode(req.Mode)
}

// HandleMode handles POST /mode. The change applies on the next control cycle.
func (h *Handlers) HandleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ModeRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	mode, err := h.resolveMode(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.SetMode == nil {
		http.Error(w, "controller not running", http.StatusServiceUnavailable)
		return
	}
	h.SetMode(mode)
	debug.Info("Mode %s requested from %s", mode, r.RemoteAddr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"mode": mode.String()})
}

// HandleOverlay serves the difference map overlay as PNG.
func (h *Handlers) HandleOverlay(w http.ResponseWriter, r *http.Request) {
	snap, _ := h.Snapshots.Latest()
	data, err := encodeOverlay(snap, h.View.Deadzone)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// HandleStream serves the latest frames as an MJPEG stream.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.View.FrameInterval)
	defer ticker.Stop()

	var last *camera.Frame
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap, _ := h.Snapshots.Latest()
			if snap.Frame == nil || snap.Frame == last {
				continue
			}
			last = snap.Frame
			data, err := frameJPEG(snap.Frame, h.View.JPEGQuality)
			if err != nil {
				debug.Verbose("MJPEG frame skipped: %v", err)
				continue
			}
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {strconv.Itoa(len(data))},
			})
			if err != nil {
				return
			}
			if _, err := part.Write(data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleWebSocket pushes snapshots to the client and accepts mode requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()
	debug.Live("websocket: %s connected", r.RemoteAddr)

	done := make(chan struct{})
	go h.readCommands(conn, done)

	ticker := time.NewTicker(h.View.PushInterval)
	defer ticker.Stop()

	var lastCycle uint64
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snap, ok := h.Snapshots.Latest()
			if !ok || snap.Cycle == lastCycle {
				continue
			}
			lastCycle = snap.Cycle
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}

func (h *Handlers) readCommands(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxRequestBytes)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debug.Verbose("websocket: %v", err)
			}
			return
		}
		var req ModeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			debug.Verbose("websocket: bad command: %v", err)
			continue
		}
		mode, err := h.resolveMode(req)
		if err != nil {
			debug.Verbose("websocket: %v", err)
			continue
		}
		if h.SetMode != nil {
			h.SetMode(mode)
		}
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	send := func(line string) {
		w.Write([]byte(line + "\n\n"))
		flusher.Flush()
	}
	send(": connected")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			send("data: " + msg)
		case <-heartbeat.C:
			send(": heartbeat")
		case <-r.Context().Done():
			return
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/TurretGo/internal/config"
	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/hw/gpio"
	"github.com/cjeanneret/TurretGo/internal/logic/turret"
	"github.com/cjeanneret/TurretGo/internal/storage"
	"github.com/cjeanneret/TurretGo/internal/telemetry"
	"github.com/cjeanneret/TurretGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	modeName := flag.String("mode", "", "initial mode: manual or autonomous (default autonomous)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	mode, err := initialMode(*modeName)
	if err != nil {
		log.Fatalf("invalid -mode: %v", err)
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", debug.Level())

	var broadcaster *web.StatusBroadcaster
	if webPort.port() > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	}

	if err := run(ctx, cfg, mode, webPort.port(), broadcaster); err != nil {
		log.Fatalf("turret: %v", err)
	}
}

// loadConfig checks the path before reading it.
func loadConfig(path string) (*config.Config, error) {
	if err := config.ValidateConfigPath(path); err != nil {
		return nil, err
	}
	return config.Load(path)
}

// initialMode parses -mode; empty means autonomous.
func initialMode(name string) (turret.Mode, error) {
	if name == "" {
		return turret.Autonomous, nil
	}
	return turret.ParseMode(name)
}

// run assembles the turret and drives it until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, mode turret.Mode, port int, broadcaster *web.StatusBroadcaster) error {
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			debug.Error(fmt.Errorf("closing GPIO driver: %w", err))
		}
	}()

	r, err := buildRig(cfg, gpioDriver)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			debug.Error(err)
		}
	}()

	ctl := turret.New(turret.Config{
		SpeedMin:    cfg.Joystick.SpeedMin,
		SpeedMax:    cfg.Joystick.SpeedMax,
		SaveFrames:  cfg.Storage.SaveFrames,
		InitialMode: mode,
	}, r.joy, r.cam, r.det, r.motion)
	ctl.SetStatus(r.status)

	debug.Step(7, "Initializing recorders")
	closeSinks, err := attachSinks(cfg, ctl)
	if err != nil {
		return err
	}
	defer closeSinks()

	g, ctx := errgroup.WithContext(ctx)
	if port > 0 {
		snapshots := web.NewSnapshotStore()
		ctl.SetPublisher(snapshots)
		view := web.DefaultViewConfig()
		view.Deadzone = cfg.Detector.CenterDeadzone
		view.JPEGQuality = cfg.Camera.JPEGQuality
		srv, err := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, snapshots, ctl.RequestMode, view)
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(ctx) })
	}

	debug.Section("Control loop")
	g.Go(func() error {
		defer r.motion.Off()
		return ctl.Run(ctx, cfg.LoopInterval())
	})
	return g.Wait()
}

// attachSinks wires the optional on-disk recorder and telemetry exporter.
// An unusable storage directory is reported and skipped, like a missing SD card.
// The returned function flushes and closes whatever was attached.
func attachSinks(cfg *config.Config, ctl *turret.Controller) (func(), error) {
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if cfg.Storage.Dir != "" {
		rec, err := storage.Open(cfg.Storage.Dir)
		if err != nil {
			debug.Error(fmt.Errorf("storage disabled: %w", err))
		} else {
			ctl.AddSink(rec)
			ctl.SetFrameSaver(rec)
			closers = append(closers, func() { rec.Close() })
			if used, err := rec.UsedSpace(); err == nil {
				debug.Info("Storage at %s (%d bytes used)", rec.Dir(), used)
			}
		}
	}
	if cfg.Telemetry.InfluxURL != "" {
		influx, err := telemetry.NewInflux(cfg.Telemetry)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		ctl.AddSink(influx)
		closers = append(closers, influx.Close)
	}
	return closeAll, nil
}

// webPortFlag implements flag.Value for -web: unset = disabled, -web= → default port, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// Package telemetry exports turret transitions to InfluxDB.
package telemetry

import (
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api/write"

	"github.com/cjeanneret/TurretGo/internal/config"
	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/logic/turret"
)

// Measurement is the InfluxDB measurement written for every transition.
const Measurement = "turret_event"

// pointWriter is the part of the non-blocking write API used here.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
	Close()
}

// Influx records turret events as points. Writes are asynchronous; failures
// surface on the debug log.
type Influx struct {
	w      pointWriter
	closer func()
}

// NewInflux connects to the server in cfg.
func NewInflux(cfg config.TelemetryConfig) (*Influx, error) {
	if cfg.InfluxURL == "" {
		return nil, errors.New("telemetry: no influx_url")
	}
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	writeApi := client.WriteApi(cfg.Org, cfg.Bucket)
	errorsCh := writeApi.Errors()
	go func() {
		for err := range errorsCh {
			debug.Error(fmt.Errorf("telemetry write: %w", err))
		}
	}()
	debug.Info("Telemetry to %s (org %s, bucket %s)", cfg.InfluxURL, cfg.Org, cfg.Bucket)
	return &Influx{w: writeApi, closer: client.Close}, nil
}

// Record implements turret.Sink.
func (i *Influx) Record(ev turret.Event) error {
	tags, fields := pointData(ev)
	i.w.WritePoint(influxdb2.NewPoint(Measurement, tags, fields, ev.Time))
	return nil
}

// Close flushes pending points and releases the client.
func (i *Influx) Close() {
	i.w.Flush()
	i.w.Close()
	if i.closer != nil {
		i.closer()
	}
}

func pointData(ev turret.Event) (map[string]string, map[string]interface{}) {
	tags := map[string]string{
		"mode": ev.Mode.String(),
		"kind": "direction",
	}
	if ev.ModeChanged {
		tags["kind"] = "mode"
	}
	fields := map[string]interface{}{
		"x": ev.Pair.X.String(),
		"y": ev.Pair.Y.String(),
	}
	if obs := ev.Observation; ev.Mode == turret.Autonomous && obs.Detected {
		fields["centroid_x"] = obs.CentroidX
		fields["centroid_y"] = obs.CentroidY
		fields["pixels"] = obs.PixelCount
	}
	return tags, fields
}

// Package notify delivers device state snapshots to the platform after a
// successful execute or a management update. Delivery is fire-and-forget:
// pushes are queued, the request that produced them never waits, and sink
// failures are logged only.
package notify

import (
	"context"
	"time"

	"smarthome/internal/logger"
)

// Notification is one state snapshot bound for the platform.
type Notification struct {
	UserID   string
	DeviceID string
	States   map[string]any
}

// Sink delivers a single notification to one destination.
type Sink interface {
	Name() string
	Push(ctx context.Context, n Notification) error
}

const pushTimeout = 5 * time.Second

// Dispatcher owns the notification queue and fans each entry out to every
// configured sink from a single background worker.
type Dispatcher struct {
	queue chan Notification
	sinks []Sink
	log   *logger.Logger
}

func NewDispatcher(queueSize int, log *logger.Logger, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		queue: make(chan Notification, queueSize),
		sinks: sinks,
		log:   log,
	}
}

// Push enqueues a snapshot without blocking the caller. When the queue is
// full the notification is dropped; best-effort delivery is the contract.
func (d *Dispatcher) Push(userID, deviceID string, states map[string]any) {
	n := Notification{UserID: userID, DeviceID: deviceID, States: rewritePlatformKeys(states)}
	select {
	case d.queue <- n:
	default:
		d.log.Warnw("notify_queue_full_dropped", "device_id", deviceID)
	}
}

// Run drains the queue until the context is cancelled. Start it from main
// like any other background worker.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	for _, sink := range d.sinks {
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := sink.Push(pushCtx, n); err != nil {
			d.log.Errorw("notify_push_failed",
				"sink", sink.Name(), "device_id", n.DeviceID, "err", err)
		}
		cancel()
	}
}

// rewritePlatformKeys renames color.spectrumRgb to color.spectrumRGB, the
// casing the platform publishes for color state. Returns a copy so stored
// state keeps the internal casing.
func rewritePlatformKeys(states map[string]any) map[string]any {
	color, ok := states["color"].(map[string]any)
	if !ok {
		return states
	}
	rgb, ok := color["spectrumRgb"]
	if !ok {
		return states
	}
	out := make(map[string]any, len(states))
	for k, v := range states {
		out[k] = v
	}
	fixed := make(map[string]any, len(color))
	for k, v := range color {
		if k == "spectrumRgb" {
			continue
		}
		fixed[k] = v
	}
	fixed["spectrumRGB"] = rgb
	out["color"] = fixed
	return out
}

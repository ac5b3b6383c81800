package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/device"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/mqtt"
)

// Monitor defaults.
const (
	// DefaultInterval is the probe interval when none is configured.
	DefaultInterval = 30 * time.Second

	// probeTimeout bounds one device probe during a round or a request.
	probeTimeout = 10 * time.Second

	// pruneInterval is how often expired history and tokens are removed.
	pruneInterval = time.Hour

	// ChannelDeviceState is the WebSocket channel carrying state changes.
	ChannelDeviceState = "device.state"
)

// Publisher is the MQTT side of the monitor.
// It is satisfied by *mqtt.Client.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// MetricsWriter records probe results as time-series points.
// It is satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteProbe(p influxdb.Probe)
	WriteHealth(h influxdb.Health)
}

// Broadcaster pushes events to WebSocket clients.
// It is satisfied by *api.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// TokenPruner removes expired API tokens.
// It is satisfied by *auth.Issuer.
type TokenPruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// Logger is the logging interface used by the monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Monitor. Only Registry is required.
type Options struct {
	Registry *device.Registry

	// Interval between probe rounds. Default: 30s.
	Interval time.Duration

	// Retention is how long snapshots are kept. Zero keeps them forever.
	Retention time.Duration

	Publisher   Publisher
	Snapshots   device.SnapshotRepository
	Metrics     MetricsWriter
	Broadcaster Broadcaster
	Tokens      TokenPruner

	Version string
	Logger  Logger
}

// Monitor probes devices periodically and on request.
//
// Thread Safety: All methods are safe for concurrent use. Each probe opens
// its own bridge session, so concurrent probes never share loop state.
type Monitor struct {
	registry  *device.Registry
	interval  time.Duration
	retention time.Duration

	publisher   Publisher
	snapshots   device.SnapshotRepository
	metrics     MetricsWriter
	broadcaster Broadcaster
	tokens      TokenPruner

	version   string
	startTime time.Time
	logger    Logger
	topics    mqtt.Topics

	mu     sync.RWMutex
	status map[string]device.Status

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once
}

// New creates a monitor. Call Start to begin probing.
//
// Returns:
//   - *Monitor: Ready to start
//   - error: If the registry is missing or the interval is negative
func New(opts Options) (*Monitor, error) {
	if opts.Registry == nil {
		return nil, errors.New("device registry is required")
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("invalid interval %v", opts.Interval)
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		registry:    opts.Registry,
		interval:    opts.Interval,
		retention:   opts.Retention,
		publisher:   opts.Publisher,
		snapshots:   opts.Snapshots,
		metrics:     opts.Metrics,
		broadcaster: opts.Broadcaster,
		tokens:      opts.Tokens,
		version:     opts.Version,
		startTime:   time.Now(),
		logger:      opts.Logger,
		status:      make(map[string]device.Status),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start subscribes to probe requests and launches the probe and prune loops.
// The first round runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.publishHealth(HealthStarting, "monitor starting")

	if m.publisher != nil {
		topic := m.topics.AllDeviceRequests()
		if err := m.publisher.Subscribe(topic, 1, m.handleRequest); err != nil {
			return fmt.Errorf("subscribe to requests: %w", err)
		}
		m.logger.Info("subscribed to probe requests", "topic", topic)
	}

	m.started = true
	m.wg.Add(2) //nolint:mnd // probe and prune loops
	go m.probeLoop(ctx)
	go m.pruneLoop(ctx)

	m.logger.Info("monitor started", "devices", m.registry.Count(), "interval", m.interval)
	return nil
}

// Stop ends both loops and publishes a final "stopping" health message.
// Safe to call multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		m.wg.Wait()
		m.publishHealth(HealthStopping, "")
		if m.started {
			m.logger.Info("monitor stopped")
		}
	})
}

func (m *Monitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.ProbeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

func (m *Monitor) pruneLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Prune(ctx)
		}
	}
}

// ProbeAll probes every registered device in id order and publishes the
// resulting health. It returns the statuses in the same order.
func (m *Monitor) ProbeAll(ctx context.Context) []device.Status {
	devices := m.registry.List()
	out := make([]device.Status, 0, len(devices))
	for _, d := range devices {
		if ctx.Err() != nil || m.ctx.Err() != nil {
			break
		}
		out = append(out, m.probe(ctx, d, device.SnapshotSourcePoll))
	}

	status, reason := m.determineStatus()
	m.publishHealth(status, reason)
	return out
}

// ProbeDevice probes one device now.
//
// Parameters:
//   - ctx: Bounds the probe
//   - id: Configured device id
//   - source: Recorded with any snapshot (poll, request, api)
//
// Returns:
//   - device.Status: The probe outcome; bridge failures are reported in it
//   - error: device.ErrDeviceNotFound if id is not registered
func (m *Monitor) ProbeDevice(ctx context.Context, id, source string) (device.Status, error) {
	d, err := m.registry.Get(id)
	if err != nil {
		return device.Status{}, err
	}
	return m.probe(ctx, d, source), nil
}

// Status returns the last known status of a device.
func (m *Monitor) Status(id string) (device.Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status[id]
	return st, ok
}

// Statuses returns the last known status of every probed device, sorted by id.
func (m *Monitor) Statuses() []device.Status {
	m.mu.RLock()
	out := make([]device.Status, 0, len(m.status))
	for _, st := range m.status {
		out = append(out, st)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Prune removes snapshots older than the retention and expired API tokens.
func (m *Monitor) Prune(ctx context.Context) {
	if m.snapshots != nil && m.retention > 0 {
		n, err := m.snapshots.PruneHistory(ctx, m.retention)
		if err != nil {
			m.logger.Warn("snapshot prune failed", "error", err)
		} else if n > 0 {
			m.logger.Info("pruned node snapshots", "deleted", n)
		}
	}
	if m.tokens != nil {
		n, err := m.tokens.PruneExpired(ctx)
		if err != nil {
			m.logger.Warn("token prune failed", "error", err)
		} else if n > 0 {
			m.logger.Info("pruned expired api tokens", "deleted", n)
		}
	}
}

// probe runs one bridge query and applies its side effects.
func (m *Monitor) probe(ctx context.Context, d *device.Device, source string) device.Status {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st := device.Probe(probeCtx, d)
	changed := m.remember(st)

	m.writeMetric(st)
	if changed {
		m.logger.Info("device state changed",
			"device", st.DeviceID,
			"presence", st.Presence,
			"name", st.Name,
			"source", source)
		m.applyChange(ctx, st, source)
	}
	return st
}

// remember stores st and reports whether it differs from the previous status.
// The first status seen for a device always counts as a change.
func (m *Monitor) remember(st device.Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.status[st.DeviceID]
	m.status[st.DeviceID] = st
	return !ok || st.Changed(prev)
}

func (m *Monitor) applyChange(ctx context.Context, st device.Status, source string) {
	if m.snapshots != nil {
		if err := m.snapshots.RecordSnapshot(ctx, st, source); err != nil {
			m.logger.Warn("snapshot write failed", "device", st.DeviceID, "error", err)
		}
	}

	msg := StateMessage{Status: st, Source: source}
	if m.publisher != nil {
		if err := m.publisher.PublishJSON(m.topics.DeviceState(st.DeviceID), msg, true); err != nil {
			m.logger.Warn("state publish failed", "device", st.DeviceID, "error", err)
		}
	}
	if m.broadcaster != nil {
		m.broadcaster.Broadcast(ChannelDeviceState, msg)
	}
}

func (m *Monitor) writeMetric(st device.Status) {
	if m.metrics == nil {
		return
	}
	props := 0
	if st.Properties != nil {
		props = st.Properties.Len()
	}
	m.metrics.WriteProbe(influxdb.Probe{
		DeviceID:      st.DeviceID,
		DeviceType:    string(st.Type),
		Presence:      string(st.Presence),
		NodeID:        st.NodeID,
		Latency:       st.Latency,
		PropertyCount: props,
		Timestamp:     st.CheckedAt,
	})
}

// counts tallies the last known presences.
func (m *Monitor) counts() (present, absent, errs int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.status {
		switch st.Presence {
		case device.PresencePresent, device.PresenceDefault:
			present++
		case device.PresenceAbsent:
			absent++
		case device.PresenceError:
			errs++
		}
	}
	return present, absent, errs
}

// determineStatus evaluates the monitor's health from the last round.
func (m *Monitor) determineStatus() (HealthStatus, string) {
	_, _, errs := m.counts()
	if errs > 0 {
		return HealthDegraded, fmt.Sprintf("%d device probe(s) failed", errs)
	}
	if m.publisher != nil && !m.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	return HealthHealthy, ""
}

// Health returns the current health message.
func (m *Monitor) Health() HealthMessage {
	status, reason := m.determineStatus()
	return m.healthMessage(status, reason)
}

func (m *Monitor) healthMessage(status HealthStatus, reason string) HealthMessage {
	present, absent, errs := m.counts()
	return HealthMessage{
		Status:        status,
		Reason:        reason,
		Version:       m.version,
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
		Devices:       m.registry.Count(),
		Present:       present,
		Absent:        absent,
		Errors:        errs,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *Monitor) publishHealth(status HealthStatus, reason string) {
	msg := m.healthMessage(status, reason)

	if m.metrics != nil && status != HealthStarting && status != HealthStopping {
		m.metrics.WriteHealth(influxdb.Health{
			Devices:   msg.Devices,
			Present:   msg.Present,
			Absent:    msg.Absent,
			Errors:    msg.Errors,
			Timestamp: msg.Timestamp,
		})
	}

	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishJSON(m.topics.Health(), msg, true); err != nil {
		m.logger.Warn("health publish failed", "status", status, "error", err)
	}
}

// handleRequest answers one probe request from MQTT.
func (m *Monitor) handleRequest(topic string, payload []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parse request on %s: %w", topic, err)
	}
	if req.RequestID == "" {
		m.logger.Warn("probe request without request_id", "topic", topic)
		return nil
	}
	if req.DeviceID == "" {
		req.DeviceID = mqtt.DeviceFromTopic(topic)
	}

	m.logger.Debug("received probe request", "request_id", req.RequestID, "device", req.DeviceID, "action", req.Action)

	resp := m.answer(req)
	if err := m.publisher.PublishJSON(m.topics.Response(req.RequestID), resp, false); err != nil {
		return fmt.Errorf("publish response %s: %w", req.RequestID, err)
	}
	return nil
}

func (m *Monitor) answer(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return errorResponse(req.RequestID, ErrCodeInvalidRequest, "device_id is required")
	}

	switch req.Action {
	case "", ActionProbe:
		st, err := m.ProbeDevice(m.ctx, req.DeviceID, device.SnapshotSourceRequest)
		if err != nil {
			return errorResponse(req.RequestID, ErrCodeNotConfigured, fmt.Sprintf("device %s not configured", req.DeviceID))
		}
		return ResponseMessage{RequestID: req.RequestID, Timestamp: time.Now().UTC(), Success: true, Status: &st}

	case ActionStatus:
		if _, err := m.registry.Get(req.DeviceID); err != nil {
			return errorResponse(req.RequestID, ErrCodeNotConfigured, fmt.Sprintf("device %s not configured", req.DeviceID))
		}
		st, ok := m.Status(req.DeviceID)
		if !ok {
			return errorResponse(req.RequestID, ErrCodeNotProbed, fmt.Sprintf("device %s has not been probed yet", req.DeviceID))
		}
		return ResponseMessage{RequestID: req.RequestID, Timestamp: time.Now().UTC(), Success: true, Status: &st}

	default:
		return errorResponse(req.RequestID, ErrCodeUnknownAction, "unknown action: "+req.Action)
	}
}

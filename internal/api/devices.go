package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-audio/internal/device"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxQueryParamLen    = 128

	// propertiesTimeout bounds a live probe when no monitor is wired.
	propertiesTimeout = 10 * time.Second
)

// deviceView is the JSON representation of a configured device.
type deviceView struct {
	ID           string         `json:"id"`
	Type         device.Type    `json:"type"`
	NodeID       *uint32        `json:"node_id,omitempty"`
	ObjectSerial string         `json:"object_serial,omitempty"`
	StreamName   string         `json:"stream_name"`
	Status       *device.Status `json:"status,omitempty"`
}

// newDeviceView builds the view of d, attaching the monitor's last known
// status when there is one.
func (s *Server) newDeviceView(d *device.Device) deviceView {
	v := deviceView{
		ID:         d.ID(),
		Type:       d.Type(),
		StreamName: d.StreamName(),
	}
	if node, ok := d.TargetNode(); ok {
		v.NodeID = &node
	}
	if serial, ok := d.ObjectSerial(); ok {
		v.ObjectSerial = serial
	}
	if s.monitor != nil {
		if st, ok := s.monitor.Status(d.ID()); ok {
			v.Status = &st
		}
	}
	return v
}

// handleListDevices returns all configured devices, sorted by id.
//
// Query parameters:
//   - direction: "input" or "output" keeps only devices that can capture or play back
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []*device.Device

	switch direction := r.URL.Query().Get("direction"); direction {
	case "":
		devices = s.registry.List()
	case "input", "output":
		for _, d := range s.registry.List() {
			if (direction == "input" && d.Type().HasInput()) ||
				(direction == "output" && d.Type().HasOutput()) {
				devices = append(devices, d)
			}
		}
	default:
		writeBadRequest(w, "direction must be input or output")
		return
	}

	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, s.newDeviceView(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.newDeviceView(d))
}

// handleGetDeviceProperties probes the device's node now and returns the
// outcome. A failed bridge query answers 502 with the status in the body.
func (s *Server) handleGetDeviceProperties(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var st device.Status
	if s.monitor != nil {
		var err error
		st, err = s.monitor.ProbeDevice(r.Context(), d.ID(), device.SnapshotSourceAPI)
		if err != nil {
			writeDeviceError(w, err)
			return
		}
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), propertiesTimeout)
		st = device.Probe(ctx, d)
		cancel()
	}

	if st.Presence == device.PresenceError {
		failWith(w, Error{Code: ErrCodeBridgeUnavailable, Message: st.Error, Device: st})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleGetDeviceHistory returns recorded node snapshots for a device.
//
// Query parameters:
//   - limit: maximum entries (default 50, max 200)
//   - since: RFC 3339 timestamp; older entries are dropped
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		fail(w, ErrCodeUnavailable, "snapshot history is not configured")
		return
	}

	d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}

	entries, err := s.history.GetHistory(r.Context(), d.ID(), limit)
	if err != nil {
		s.logger.Error("failed to read snapshot history", "device_id", d.ID(), "error", err)
		writeInternalError(w, "failed to read history")
		return
	}

	if !since.IsZero() {
		filtered := entries[:0]
		for _, e := range entries {
			if !e.CreatedAt.Before(since) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if entries == nil {
		entries = []device.SnapshotEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": d.ID(),
		"history":   entries,
		"count":     len(entries),
	})
}

// lookupDevice resolves the {id} URL parameter, writing the error response
// itself when it fails.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return nil, false
	}

	d, err := s.registry.Get(id)
	if err != nil {
		writeDeviceError(w, err)
		return nil, false
	}
	return d, true
}

// writeDeviceError maps device package errors to responses.
func writeDeviceError(w http.ResponseWriter, err error) {
	if errors.Is(err, device.ErrDeviceNotFound) {
		writeNotFound(w, "device not found")
		return
	}
	writeInternalError(w, "device lookup failed")
}

func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if len(raw) > maxQueryParamLen {
		return time.Time{}, fmt.Errorf("since too long")
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ABOUTME: HTTP handlers for the monitor control and status endpoints
// ABOUTME: Implements start, stop, now-playing, monitor listing, stations, and health routes
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/harper/radio-nowplaying/internal/application/registry"
	"github.com/harper/radio-nowplaying/internal/domain/track"
	"github.com/harper/radio-nowplaying/internal/infrastructure/store"
)

// Monitors is the registry surface the handlers drive.
type Monitors interface {
	Start(stream, label string) (bool, track.State)
	Stop(stream string) bool
	Status(stream string) track.State
	List() []registry.Entry
	Count() int
}

type StationLister interface {
	ListStations(ctx context.Context) ([]store.Station, error)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

type startRequest struct {
	Stream      string `json:"stream"`
	StationName string `json:"station_name"`
	Label       string `json:"label"`
}

type startResponse struct {
	Created bool        `json:"created"`
	Message string      `json:"message,omitempty"`
	State   track.State `json:"state"`
}

type stopResponse struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, log logrus.FieldLogger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("encode json response")
	}
}

func respondError(w http.ResponseWriter, log logrus.FieldLogger, statusCode int, message string) {
	respondJSON(w, log, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// requireMethod answers 405 and reports false when r does not use method.
func requireMethod(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	respondError(w, log, http.StatusMethodNotAllowed, method+" required")
	return false
}

// decodeStreamRequest reads a JSON body and requires a non-blank stream.
// An empty body is treated as an empty object.
func decodeStreamRequest(r *http.Request) (startRequest, error) {
	var req startRequest
	err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return req, errors.New("invalid JSON body")
	}
	if strings.TrimSpace(req.Stream) == "" {
		return req, errors.New("stream required")
	}
	return req, nil
}

type StartHandler struct {
	mon Monitors
	log logrus.FieldLogger
}

func NewStartHandler(mon Monitors, log logrus.FieldLogger) *StartHandler {
	return &StartHandler{mon: mon, log: log}
}

func (h *StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, h.log, http.MethodPost) {
		return
	}

	req, err := decodeStreamRequest(r)
	if err != nil {
		respondError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}

	label := req.StationName
	if label == "" {
		label = req.Label
	}

	created, state := h.mon.Start(req.Stream, label)
	resp := startResponse{Created: created, State: state}
	if !created {
		resp.Message = "monitor already running"
	}
	respondJSON(w, h.log, http.StatusOK, resp)
}

type StopHandler struct {
	mon Monitors
	log logrus.FieldLogger
}

func NewStopHandler(mon Monitors, log logrus.FieldLogger) *StopHandler {
	return &StopHandler{mon: mon, log: log}
}

func (h *StopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, h.log, http.MethodPost) {
		return
	}

	req, err := decodeStreamRequest(r)
	if err != nil {
		respondError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}

	if !h.mon.Stop(req.Stream) {
		respondJSON(w, h.log, http.StatusOK, stopResponse{Stopped: false, Message: "not running"})
		return
	}
	respondJSON(w, h.log, http.StatusOK, stopResponse{Stopped: true})
}

type NowPlayingHandler struct {
	mon Monitors
	log logrus.FieldLogger
}

func NewNowPlayingHandler(mon Monitors, log logrus.FieldLogger) *NowPlayingHandler {
	return &NowPlayingHandler{mon: mon, log: log}
}

func (h *NowPlayingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, h.log, http.MethodGet) {
		return
	}

	stream := r.URL.Query().Get("stream")
	if strings.TrimSpace(stream) == "" {
		respondError(w, h.log, http.StatusBadRequest, "stream required")
		return
	}

	respondJSON(w, h.log, http.StatusOK, h.mon.Status(stream))
}

type MonitorsHandler struct {
	mon Monitors
	log logrus.FieldLogger
}

func NewMonitorsHandler(mon Monitors, log logrus.FieldLogger) *MonitorsHandler {
	return &MonitorsHandler{mon: mon, log: log}
}

func (h *MonitorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, h.log, http.MethodGet) {
		return
	}
	respondJSON(w, h.log, http.StatusOK, h.mon.List())
}

type StationsHandler struct {
	stations StationLister
	log      logrus.FieldLogger
}

func NewStationsHandler(stations StationLister, log logrus.FieldLogger) *StationsHandler {
	return &StationsHandler{stations: stations, log: log}
}

func (h *StationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, h.log, http.MethodGet) {
		return
	}

	result := []store.Station{}
	if h.stations != nil {
		stations, err := h.stations.ListStations(r.Context())
		if err != nil {
			h.log.WithError(err).Error("list stations")
			respondError(w, h.log, http.StatusInternalServerError, "could not list stations")
			return
		}
		result = append(result, stations...)
	}

	respondJSON(w, h.log, http.StatusOK, result)
}

type HealthzHandler struct {
	mon Monitors
	log logrus.FieldLogger
}

func NewHealthzHandler(mon Monitors, log logrus.FieldLogger) *HealthzHandler {
	return &HealthzHandler{mon: mon, log: log}
}

func (h *HealthzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type response struct {
		OK       bool `json:"ok"`
		Monitors int  `json:"monitors"`
	}

	respondJSON(w, h.log, http.StatusOK, response{OK: true, Monitors: h.mon.Count()})
}

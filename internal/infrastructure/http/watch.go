// ABOUTME: Websocket endpoint pushing a stream's now-playing state as it changes
// ABOUTME: Polls the registry snapshot and writes JSON frames only on change
package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

type WatchHandler struct {
	mon     Monitors
	origins []string
	every   time.Duration
	log     logrus.FieldLogger
}

func NewWatchHandler(mon Monitors, origins []string, every time.Duration, log logrus.FieldLogger) *WatchHandler {
	if every == 0 {
		every = time.Second
	}
	return &WatchHandler{mon: mon, origins: origins, every: every, log: log}
}

func (h *WatchHandler) acceptOptions() *websocket.AcceptOptions {
	if len(h.origins) == 0 || (len(h.origins) == 1 && h.origins[0] == "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: h.origins}
}

func (h *WatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stream := r.URL.Query().Get("stream")
	if strings.TrimSpace(stream) == "" {
		respondError(w, h.log, http.StatusBadRequest, "stream required")
		return
	}

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.WithError(err).Debug("ws accept failed")
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead cancels ctx when they hang up.
	ctx := conn.CloseRead(r.Context())

	last := h.mon.Status(stream)
	if err := h.write(ctx, conn, last); err != nil {
		return
	}

	ticker := time.NewTicker(h.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := h.mon.Status(stream)
			if current.Equal(last) {
				continue
			}
			if err := h.write(ctx, conn, current); err != nil {
				h.log.WithError(err).WithField("stream", stream).Debug("ws write failed")
				return
			}
			last = current
		}
	}
}

func (h *WatchHandler) write(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

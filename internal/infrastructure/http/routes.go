// ABOUTME: Route table and middleware for the status API
// ABOUTME: Wraps the mux with CORS and logrus access logging
package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Monitors       Monitors
	Stations       StationLister
	AllowedOrigins []string
	WatchInterval  time.Duration
	Log            logrus.FieldLogger
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/monitor/start", NewStartHandler(cfg.Monitors, log))
	mux.Handle("/monitor/stop", NewStopHandler(cfg.Monitors, log))
	mux.Handle("/nowplaying", NewNowPlayingHandler(cfg.Monitors, log))
	mux.Handle("/nowplaying/ws", NewWatchHandler(cfg.Monitors, cfg.AllowedOrigins, cfg.WatchInterval, log))
	mux.Handle("/monitors", NewMonitorsHandler(cfg.Monitors, log))
	mux.Handle("/stations", NewStationsHandler(cfg.Stations, log))
	mux.Handle("/healthz", NewHealthzHandler(cfg.Monitors, log))

	return loggingMiddleware(log)(corsMiddleware(cfg.AllowedOrigins)(mux))
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func loggingMiddleware(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrapped.statusCode,
				"duration": time.Since(start).String(),
				"remote":   r.RemoteAddr,
			}).Debug("http request")
		})
	}
}

// responseWriter captures the status code. It keeps Hijack reachable for the
// websocket upgrade.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

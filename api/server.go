// Package api exposes the acquisition pipeline over HTTP: archived frames,
// a live peek at the decoded frame queue, sensor commands and counters.
package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/banshee-data/mmwave.report/db"
	"github.com/banshee-data/mmwave.report/internal/httputil"
	"github.com/banshee-data/mmwave.report/internal/mmwave"
	"github.com/banshee-data/mmwave.report/internal/mmwave/parse"
)

// SensorInterface is the slice of the sensor connection the API consumes.
type SensorInterface interface {
	PeekAll() []*parse.Frame
	TakeFront(n int, remove bool) ([]*parse.Frame, error)
	QueueLen() int
	SendCommand(command string) error
	Stats() mmwave.Stats
}

type Server struct {
	sensor SensorInterface
	db     *db.DB
}

func NewServer(sensor SensorInterface, db *db.DB) *Server {
	return &Server{
		sensor: sensor,
		db:     db,
	}
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to the mmWave Sensor Server!"))
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/frames", s.listFrames)
	mux.HandleFunc("/live", s.liveFrames)
	mux.HandleFunc("/stats", s.stats)
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	command := r.FormValue("command")
	if command == "" {
		httputil.BadRequest(w, "missing command")
		return
	}

	if err := s.sensor.SendCommand(command); err != nil {
		httputil.InternalServerError(w, "failed to send command")
		return
	}
	io.WriteString(w, "Command sent successfully")
}

// listFrames returns recent archived frame summaries.
func (s *Server) listFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > 10000 {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = v
	}

	frames, err := s.db.RecentFrames(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("retrieve frames: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, frames)
}

// liveFrames returns the decoded frames currently queued, without draining
// them unless ?take=N is given.
func (s *Server) liveFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if t := r.URL.Query().Get("take"); t != "" {
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid take count")
			return
		}
		if n > s.sensor.QueueLen() {
			httputil.BadRequest(w, "take count exceeds queued frames")
			return
		}
		frames, err := s.sensor.TakeFront(n, true)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("take frames: %v", err))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, frames)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, s.sensor.PeekAll())
}

// stats returns the acquisition counters.
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.sensor.Stats())
}

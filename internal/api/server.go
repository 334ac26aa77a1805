// Package api serves a read-only JSON view of the tracker registry and the
// ingest counters, plus tsweb debug pages.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/argus/internal/network"
	"github.com/banshee-data/argus/internal/protocol"
	"github.com/banshee-data/argus/internal/tracking"
	"github.com/banshee-data/argus/internal/version"
)

// DefaultRecordLimit is the number of entries returned by the records
// endpoint when no limit is given.
const DefaultRecordLimit = 50

type Server struct {
	registry *tracking.Registry
	stats    *network.PacketStats
}

func NewServer(registry *tracking.Registry, stats *network.PacketStats) *Server {
	return &Server{
		registry: registry,
		stats:    stats,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/trackers", s.listTrackers)
	mux.HandleFunc("/api/trackers/{key}", s.showTracker)
	mux.HandleFunc("/api/trackers/{key}/records", s.listRecords)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

// trackerView is the list form of a tracker.
type trackerView struct {
	Key      string     `json:"key"`
	ID       string     `json:"id"`
	Source   string     `json:"source"`
	Records  int        `json:"records"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// recordView is an entry with the image replaced by its length.
type recordView struct {
	Seq            uint64                `json:"seq"`
	ReceivedAt     time.Time             `json:"received_at"`
	Source         string                `json:"source"`
	Header         protocol.SensorHeader `json:"header"`
	Samples        []protocol.IMUSample  `json:"samples"`
	MissingSamples int                   `json:"missing_samples"`
	ImageBytes     int                   `json:"image_bytes"`
	Truncated      bool                  `json:"truncated"`
}

func newRecordView(e tracking.Entry) recordView {
	return recordView{
		Seq:            e.Seq,
		ReceivedAt:     e.ReceivedAt,
		Source:         addrString(e.Source),
		Header:         e.Record.Header,
		Samples:        e.Record.Samples,
		MissingSamples: e.Record.MissingSamples(),
		ImageBytes:     len(e.Record.Image),
		Truncated:      e.Record.Truncated(),
	}
}

func addrString(ap netip.AddrPort) string {
	if !ap.IsValid() {
		return ""
	}
	return ap.String()
}

func (s *Server) listTrackers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	trackers := s.registry.Trackers()
	views := make([]trackerView, 0, len(trackers))
	for _, tr := range trackers {
		v := trackerView{
			Key:     tr.Key().String(),
			ID:      tr.ID(),
			Source:  addrString(tr.Source()),
			Records: tr.Len(),
		}
		if last, ok := tr.Last(); ok {
			v.LastSeen = &last.ReceivedAt
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

// lookupTracker resolves the {key} path value, writing an error response
// and returning nil if it is malformed or unknown.
func (s *Server) lookupTracker(w http.ResponseWriter, r *http.Request) *tracking.Tracker {
	key, err := tracking.ParseDeviceKey(r.PathValue("key"))
	if err != nil {
		badRequest(w, err.Error())
		return nil
	}
	tr, ok := s.registry.Get(key)
	if !ok {
		notFound(w, fmt.Sprintf("no tracker for device key %s", key))
		return nil
	}
	return tr
}

func (s *Server) showTracker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	tr := s.lookupTracker(w, r)
	if tr == nil {
		return
	}
	writeJSON(w, http.StatusOK, tr.Summary())
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit := DefaultRecordLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	tr := s.lookupTracker(w, r)
	if tr == nil {
		return
	}

	entries := tr.Tail(limit)
	views := make([]recordView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newRecordView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, version.Get())
}

// AttachAdminRoutes registers the /debug/ pages on mux.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Trackers", func() any { return s.registry.Len() })
	debug.KVFunc("Packets received", func() any { return s.stats.Snapshot().Packets })
	debug.KVFunc("Packets rejected", func() any { return s.stats.Snapshot().Rejected() })
	debug.KVFunc("Sensor records", func() any { return s.stats.Snapshot().SensorRecords })
	debug.KVFunc("Dropped notifications", func() any { return s.registry.DroppedNotifications() })

	proc := &processStats{}
	debug.KVFunc("Process RSS (MiB)", proc.RSS)
	debug.KVFunc("Process CPU %", proc.CPUPercent)

	// Server-Sent Events stream of one tracker's new records.
	debug.HandleSilentFunc("tail", s.tailRecords)
}

func (s *Server) tailRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key, err := tracking.ParseDeviceKey(r.URL.Query().Get("key"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tr, ok := s.registry.Get(key)
	if !ok {
		http.Error(w, "Unknown tracker", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, c := tr.Subscribe()
	defer tr.Unsubscribe(id)

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case entry, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(newRecordView(entry))
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/domain"
	"sastrust/internal/transport"
)

type serverMetrics struct {
	registrations prometheus.Counter
	enqueued      *prometheus.CounterVec
	acked         prometheus.Counter
	rejected      *prometheus.CounterVec
	queued        prometheus.Gauge
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sastrust",
			Subsystem: "relay",
			Name:      "registrations_total",
			Help:      "Accepted device registrations.",
		}),
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sastrust",
			Subsystem: "relay",
			Name:      "envelopes_enqueued_total",
			Help:      "Envelopes queued for a device, by channel.",
		}, []string{"channel"}),
		acked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sastrust",
			Subsystem: "relay",
			Name:      "envelopes_acked_total",
			Help:      "Envelopes removed after delivery.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sastrust",
			Subsystem: "relay",
			Name:      "rejected_requests_total",
			Help:      "Requests refused by the relay.",
		}, []string{"endpoint"}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sastrust",
			Subsystem: "relay",
			Name:      "queued_envelopes",
			Help:      "Envelopes waiting to be fetched.",
		}),
	}
	reg.MustRegister(m.registrations, m.enqueued, m.acked, m.rejected, m.queued)
	return m
}

// Server is an in-memory relay. Devices register under their identity;
// messages are queued per recipient device until acknowledged.
type Server struct {
	log     *logging.Logger
	clock   func() time.Time
	metrics *serverMetrics
	mux     *http.ServeMux

	mu      sync.Mutex
	devices map[domain.CryptoIdentity][]domain.UID
	owners  map[domain.UID]domain.CryptoIdentity
	queues  map[domain.UID][]domain.Envelope
	seq     uint64
}

// NewServer returns a relay registering its metrics with reg.
func NewServer(log *logging.Logger, reg *prometheus.Registry) *Server {
	s := &Server{
		log:     log,
		clock:   time.Now,
		metrics: newServerMetrics(reg),
		mux:     http.NewServeMux(),
		devices: make(map[domain.CryptoIdentity][]domain.UID),
		owners:  make(map[domain.UID]domain.CryptoIdentity),
		queues:  make(map[domain.UID][]domain.Envelope),
	}
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("GET /devices/{identity}", s.handleDevices)
	s.mux.HandleFunc("POST /msg", s.handlePost)
	s.mux.HandleFunc("GET /msg/{device}", s.handleFetch)
	s.mux.HandleFunc("POST /msg/{device}/ack", s.handleAck)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return s
}

// ServeHTTP implements http.Handler with an access log.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := s.clock()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.log.Debugf("%s %s %s %d %dB %s", r.Method, r.URL.Path, r.RemoteAddr,
		rec.status, rec.bytes, time.Since(start).Round(time.Microsecond))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var reg domain.DeviceRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		s.reject(w, "register", err.Error(), http.StatusBadRequest)
		return
	}
	if err := VerifyRegistration(reg); err != nil {
		s.reject(w, "register", err.Error(), http.StatusForbidden)
		return
	}

	s.mu.Lock()
	owner, known := s.owners[reg.Device]
	if known && owner != reg.Identity {
		s.mu.Unlock()
		s.reject(w, "register", "device registered to another identity", http.StatusConflict)
		return
	}
	if !known {
		s.owners[reg.Device] = reg.Identity
		s.devices[reg.Identity] = append(s.devices[reg.Identity], reg.Device)
	}
	s.mu.Unlock()

	if !known {
		s.metrics.registrations.Inc()
		s.log.Infof("Registered device %s of %s", reg.Device.Short(), reg.Identity.Short())
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCryptoIdentityHex(r.PathValue("identity"))
	if err != nil {
		s.reject(w, "devices", err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	out := append([]domain.UID{}, s.devices[id]...)
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var out domain.Outbound
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		s.reject(w, "msg", err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.owners[out.FromDevice] != out.FromIdentity || out.FromIdentity.IsZero() {
		s.mu.Unlock()
		s.reject(w, "msg", "sender device not registered", http.StatusForbidden)
		return
	}
	to, err := transport.Route(out, func(id domain.CryptoIdentity) []domain.UID { return s.devices[id] })
	if err != nil {
		s.mu.Unlock()
		status := http.StatusBadRequest
		if errors.Is(err, transport.ErrNoRecipient) {
			status = http.StatusNotFound
		}
		s.reject(w, "msg", err.Error(), status)
		return
	}
	now := s.clock()
	for _, dev := range to {
		s.seq++
		s.queues[dev] = append(s.queues[dev], domain.Envelope{
			Seq:        s.seq,
			ToDevice:   dev,
			Message:    out,
			EnqueuedAt: now,
		})
	}
	s.mu.Unlock()

	s.metrics.enqueued.WithLabelValues(out.Channel.String()).Add(float64(len(to)))
	s.metrics.queued.Add(float64(len(to)))
	writeJSON(w, struct {
		Delivered int `json:"delivered"`
	}{len(to)})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	dev, err := domain.ParseUID(r.PathValue("device"))
	if err != nil {
		s.reject(w, "fetch", err.Error(), http.StatusBadRequest)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			s.reject(w, "fetch", "bad limit", http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	q := s.queues[dev]
	if limit == 0 || limit > len(q) {
		limit = len(q)
	}
	out := append([]domain.Envelope{}, q[:limit]...)
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	dev, err := domain.ParseUID(r.PathValue("device"))
	if err != nil {
		s.reject(w, "ack", err.Error(), http.StatusBadRequest)
		return
	}
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "ack", err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	q := s.queues[dev]
	kept := q[:0]
	for _, env := range q {
		if !slices.Contains(req.Seqs, env.Seq) {
			kept = append(kept, env)
		}
	}
	removed := len(q) - len(kept)
	if len(kept) == 0 {
		delete(s.queues, dev)
	} else {
		s.queues[dev] = kept
	}
	s.mu.Unlock()

	s.metrics.acked.Add(float64(removed))
	s.metrics.queued.Sub(float64(removed))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) reject(w http.ResponseWriter, endpoint, msg string, status int) {
	s.metrics.rejected.WithLabelValues(endpoint).Inc()
	s.log.Noticef("Rejected %s request: %s", endpoint, msg)
	http.Error(w, msg, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

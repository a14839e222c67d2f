package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"AstroGate/internal/metrics"
	"AstroGate/internal/model"
	"AstroGate/internal/parser"
	"AstroGate/internal/script"
	"AstroGate/internal/store"
)

const (
	maxBodyBytes   = 64 << 10
	eventQueue     = 64
	wsWriteTimeout = 2 * time.Second
	defaultHistory = 50
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Event is a message pushed to websocket clients.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// Event types.
const (
	EventStatus = "status"
	EventSample = "sample"
	EventScript = "script"
)

// Hub is the operator facing HTTP surface: it accepts gateway commands and
// telemetry, fans events out to websocket clients, emits the periodic status
// packet and serves metrics.
type Hub struct {
	Addr string

	gw          *Gateway
	store       *store.Store
	uplink      *parser.UplinkDecoder
	metrics     *metrics.Registry
	log         *zap.Logger
	statusEvery time.Duration
	authToken   string

	clients map[*websocket.Conn]bool
	mu      sync.Mutex

	events  chan Event
	stop    chan struct{}
	stopped sync.Once
	started sync.Once
	wg      sync.WaitGroup

	srvMu  sync.Mutex
	server *http.Server
}

// HubOptions carries the optional hub collaborators.
type HubOptions struct {
	Store          *store.Store
	Uplink         *parser.UplinkDecoder
	StatusInterval time.Duration
	// AuthToken guards the command routes; empty leaves them open.
	AuthToken string
}

// NewHub constructs a Hub listening on addr and registers it as a gateway observer.
func NewHub(addr string, gw *Gateway, m *metrics.Registry, log *zap.Logger, opts HubOptions) *Hub {
	h := &Hub{
		Addr:        addr,
		gw:          gw,
		store:       opts.Store,
		uplink:      opts.Uplink,
		metrics:     m,
		log:         log.Named("hub"),
		statusEvery: opts.StatusInterval,
		authToken:   opts.AuthToken,
		clients:     map[*websocket.Conn]bool{},
		events:      make(chan Event, eventQueue),
		stop:        make(chan struct{}),
	}
	gw.AddObserver(h)
	return h
}

// Handler returns the hub routes.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	h.route(mux, "POST /api/script/local", h.guard(h.handleLocalScript))
	h.route(mux, "POST /api/script/remote", h.guard(h.handleRemoteScript))
	h.route(mux, "POST /api/script/test", h.guard(h.handleTestScript))
	h.route(mux, "POST /api/reset", h.guard(h.handleReset))
	h.route(mux, "POST /api/noop", h.guard(h.handleNoop))
	h.route(mux, "GET /api/status", h.handleStatus)
	h.route(mux, "POST /api/telemetry", h.guard(h.handleTelemetry))
	h.route(mux, "POST /api/uplink", h.handleUplink)
	h.route(mux, "GET /api/latest", h.handleLatest)
	h.route(mux, "GET /api/history", h.handleHistory)
	mux.HandleFunc("GET /ws", h.handleWS)
	mux.Handle("GET /metrics", h.metrics.Handler())
	return mux
}

// Start launches the HTTP server and the event workers.
// This call blocks until the server stops or fails.
func (h *Hub) Start() error {
	h.startWorkers()

	srv := &http.Server{Addr: h.Addr, Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}
	h.srvMu.Lock()
	h.server = srv
	h.srvMu.Unlock()

	if h.authToken == "" {
		h.log.Warn("hub command routes are not authenticated", zap.String("addr", h.Addr))
	}
	h.log.Info("hub listening", zap.String("addr", h.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts down the HTTP server, the workers and all websocket clients.
func (h *Hub) Stop() {
	h.stopped.Do(func() { close(h.stop) })

	h.srvMu.Lock()
	if h.server != nil {
		_ = h.server.Close()
	}
	h.srvMu.Unlock()
	h.wg.Wait()

	h.mu.Lock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

func (h *Hub) startWorkers() {
	h.started.Do(func() {
		h.wg.Add(1)
		go h.pump()
		if h.statusEvery > 0 {
			h.wg.Add(1)
			go h.statusLoop()
		}
	})
}

// ScriptSent implements Observer.
func (h *Hub) ScriptSent(name string, cmd model.ScriptCommand) {
	h.enqueue(EventScript, map[string]any{"name": name, "command": cmd})
}

// SampleDecoded implements Observer.
func (h *Hub) SampleDecoded(source string, s model.SenseHatSample) {
	h.enqueue(EventSample, map[string]any{"source": source, "sample": s})
}

// StatusChanged implements Observer.
func (h *Hub) StatusChanged(st model.Status) {
	h.enqueue(EventStatus, st)
}

// enqueue never blocks: observers run under the gateway lock.
func (h *Hub) enqueue(typ string, data any) {
	ev := Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), Data: data}
	select {
	case h.events <- ev:
	default:
		h.log.Debug("event queue full, dropping", zap.String("type", typ))
	}
}

func (h *Hub) pump() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stop:
			return
		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) statusLoop() {
	defer h.wg.Done()
	t := time.NewTicker(h.statusEvery)
	defer t.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-t.C:
			h.enqueue(EventStatus, h.gw.Status())
		}
	}
}

// broadcast sends an event to all connected websocket clients.
func (h *Hub) broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode event", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("dropping websocket client", zap.Error(err))
			_ = c.Close()
			delete(h.clients, c)
			h.metrics.WSClients.Dec()
		}
	}
}

// handleWS upgrades HTTP to websocket and registers the client for broadcasts.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.metrics.WSClients.Inc()

	go func() {
		defer func() {
			h.mu.Lock()
			if h.clients[conn] {
				delete(h.clients, conn)
				h.metrics.WSClients.Dec()
			}
			h.mu.Unlock()
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

type scriptResponse struct {
	Command model.ScriptCommand `json:"command"`
	Status  model.Status        `json:"status"`
}

func (h *Hub) handleLocalScript(w http.ResponseWriter, r *http.Request) {
	var req model.FileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd, err := h.gw.SendLocalScript(req.Filename)
	h.replyScript(w, cmd, err)
}

func (h *Hub) handleRemoteScript(w http.ResponseWriter, r *http.Request) {
	var req model.FileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd, err := h.gw.StartRemoteScript(req.Filename)
	h.replyScript(w, cmd, err)
}

func (h *Hub) handleTestScript(w http.ResponseWriter, r *http.Request) {
	var req model.TestScriptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd, err := h.gw.SendTestScript(script.TestScript(req.Script))
	h.replyScript(w, cmd, err)
}

func (h *Hub) replyScript(w http.ResponseWriter, cmd model.ScriptCommand, err error) {
	if err != nil {
		writeError(w, scriptStatusCode(err), err)
		return
	}
	writeJSON(w, http.StatusOK, scriptResponse{Command: cmd, Status: h.gw.Status()})
}

func (h *Hub) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gw.Reset())
}

func (h *Hub) handleNoop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.gw.Noop()})
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gw.Status())
}

// handleTelemetry accepts a bare CSV parameter blob.
func (h *Hub) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s, err := h.gw.HandleCsvTelemetry("http", string(body))
	if err != nil {
		writeError(w, telemetryStatusCode(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// handleUplink accepts a raw LoRaWAN PHYPayload carrying a CSV blob.
func (h *Hub) handleUplink(w http.ResponseWriter, r *http.Request) {
	if h.uplink == nil {
		http.Error(w, "lorawan not configured", http.StatusNotFound)
		return
	}
	frame, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	up, err := h.uplink.Decode(frame)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, parser.ErrInvalidMIC) {
			code = http.StatusUnauthorized
		}
		h.metrics.Uplinks.WithLabelValues("rejected").Inc()
		h.log.Warn("uplink rejected", zap.Error(err))
		writeError(w, code, err)
		return
	}
	s, err := h.gw.HandleCsvTelemetry("lorawan:"+up.DevAddr, string(up.Payload))
	if errors.Is(err, ErrPublish) {
		h.metrics.Uplinks.WithLabelValues("publish").Inc()
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if err != nil {
		h.metrics.Uplinks.WithLabelValues("bad_payload").Inc()
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	h.metrics.Uplinks.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"dev_addr": up.DevAddr, "f_cnt": up.FCnt, "sample": s})
}

func (h *Hub) handleLatest(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "history store disabled", http.StatusNotFound)
		return
	}
	rec, err := h.store.LatestSample()
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "no telemetry data", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleHistory lists stored records, newest first. ?kind=scripts|samples&limit=N
func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "history store disabled", http.StatusNotFound)
		return
	}
	limit := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var (
		out any
		err error
	)
	switch kind := r.URL.Query().Get("kind"); kind {
	case "", "samples":
		out, err = h.store.Samples(limit)
	case "scripts":
		out, err = h.store.Scripts(limit)
	default:
		http.Error(w, "unknown kind "+strconv.Quote(kind), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Hub) guard(fn http.HandlerFunc) http.HandlerFunc {
	return AuthMiddleware(h.authToken, fn)
}

func (h *Hub) route(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		fn(rec, r)
		h.metrics.ObserveRequest(r.URL.Path, strconv.Itoa(rec.code), time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func scriptStatusCode(err error) int {
	switch {
	case errors.Is(err, script.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, script.ErrInvalidFilename):
		return http.StatusBadRequest
	case errors.Is(err, script.ErrOutsideScriptDir):
		return http.StatusForbidden
	case errors.Is(err, script.ErrTranscodeOverflow):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrPublish):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func telemetryStatusCode(err error) int {
	if errors.Is(err, ErrPublish) {
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

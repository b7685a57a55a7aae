package server

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/signcheck/internal/assessment"
	"github.com/ayusman/signcheck/internal/logger"
	"github.com/ayusman/signcheck/internal/metrics"
	"github.com/ayusman/signcheck/internal/mlclient"
	"github.com/ayusman/signcheck/internal/server/api"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Frontend may be served from another origin
	},
}

// streamWriteTimeout bounds each frame reply.
const streamWriteTimeout = 5 * time.Second

// StreamHandler runs an assessment over a WebSocket. Each text message is a
// landmark payload; each reply is a verdict or an error object.
type StreamHandler struct {
	engine    *assessment.Engine
	predictor mlclient.Predictor
	limiter   *api.SubjectLimiter
	log       logger.Logger
	clients   map[*websocket.Conn]bool
	mu        sync.RWMutex
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(engine *assessment.Engine, predictor mlclient.Predictor, limiter *api.SubjectLimiter) *StreamHandler {
	return &StreamHandler{
		engine:    engine,
		predictor: predictor,
		limiter:   limiter,
		log:       logger.Get().Named("stream"),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP validates the session and upgrades to a WebSocket.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(r.Header.Get(api.SubjectHeader))
	if subject == "" {
		subject = strings.TrimSpace(r.URL.Query().Get("subject"))
	}
	if subject == "" {
		http.Error(w, "Not logged in", http.StatusUnauthorized)
		return
	}

	lessonID, err := strconv.Atoi(r.URL.Query().Get("lesson"))
	if err != nil {
		http.Error(w, "Lesson not found", http.StatusNotFound)
		return
	}
	if _, err := h.engine.Catalog().Definition(lessonID); err != nil {
		status, body := api.ErrorFor(err)
		http.Error(w, body.Error, status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade error", logger.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(api.MaxBodyBytes)

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	metrics.StreamOpened()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		metrics.StreamClosed()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		reply := h.handleFrame(r, subject, lessonID, msg)
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			break
		}
	}
}

// handleFrame turns one landmark message into a verdict or error reply.
func (h *StreamHandler) handleFrame(r *http.Request, subject string, lessonID int, msg []byte) interface{} {
	if !h.limiter.Allow(subject) {
		metrics.RecordRateLimited()
		return api.ErrorResponse{Error: "Too many requests"}
	}

	ctx := r.Context()
	pred, err := h.predictor.Predict(ctx, msg)
	if err != nil {
		_, body := api.ErrorFor(err)
		return body
	}

	verdict, err := h.engine.RecordAndEvaluate(ctx, subject, lessonID, pred, time.Now())
	if err != nil {
		h.log.Error(ctx, "stream assessment failed",
			logger.String("subject", subject),
			logger.Int("lesson", lessonID),
			logger.Error(err))
		_, body := api.ErrorFor(err)
		return body
	}
	return api.NewVerdictResponse(&pred, verdict)
}

// Clients returns the number of open streams.
func (h *StreamHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every open stream. http.Server.Shutdown does not track
// hijacked connections.
func (h *StreamHandler) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

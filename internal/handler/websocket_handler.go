// internal/handler/websocket_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketHandler streams instrument events to connected clients
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	eventBus *EventBus
	logger   *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler over the event bus
func NewWebSocketHandler(eventBus *EventBus, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// origin filtering happens in the CORS middleware
				return true
			},
		},
		eventBus: eventBus,
		logger:   utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.HandleEvents)
	router.GET("/measurements", h.HandleMeasurements)
	router.GET("/oven", h.HandleOvenTicks)
}

// HandleEvents streams every instrument event
func (h *WebSocketHandler) HandleEvents(c *gin.Context) {
	h.stream(c, "")
}

// HandleMeasurements streams gaussmeter measurement events
func (h *WebSocketHandler) HandleMeasurements(c *gin.Context) {
	h.stream(c, model.EventTypeMeasurement)
}

// HandleOvenTicks streams oven control-loop ticks
func (h *WebSocketHandler) HandleOvenTicks(c *gin.Context) {
	h.stream(c, model.EventTypeControlTick)
}

// stream upgrades the connection and forwards bus events until the
// client goes away.
func (h *WebSocketHandler) stream(c *gin.Context, eventType string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	events := h.eventBus.Subscribe(eventType)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", clientID),
		zap.String("event_type", eventType),
		zap.String("remote_addr", c.Request.RemoteAddr),
	)

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, events, done)

	h.eventBus.Unsubscribe(eventType, events)
	conn.Close()
	h.logger.Info("WebSocket client disconnected", zap.String("client_id", clientID))
}

// readLoop drains client frames so pings and close frames are processed
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop forwards events and keeps the connection alive with pings
func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, events <-chan *model.InstrumentEvent, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

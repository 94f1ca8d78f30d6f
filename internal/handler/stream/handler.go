package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Source is the state hub as seen by push clients.
type Source interface {
	Subscribe(ctx context.Context, fn func(model.StateEvent))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	id   string
	send chan []byte
	conn *websocket.Conn
}

type Handler struct {
	source Source
	logger *logger.Logger
}

func NewHandler(source Source, log *logger.Logger) *Handler {
	return &Handler{source: source, logger: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/stream", h.Connect)
}

// Connect upgrades the request and pushes a snapshot followed by every state
// event until the client goes away.
func (h *Handler) Connect(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		send: make(chan []byte, sendBuffer),
		conn: ws,
	}
	log := h.logger.With("client_id", cl.id)
	log.Debug("stream client connected")

	// The request context ends when the handler returns, so the
	// subscription gets its own.
	ctx, cancel := context.WithCancel(context.Background())

	h.source.Subscribe(ctx, func(ev model.StateEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error(err, "failed to marshal state event")
			return
		}
		select {
		case cl.send <- data:
		default:
			log.Warn("stream client too slow, closing")
			cancel()
		}
	})

	go h.writePump(ctx, cl)
	go func() {
		h.readPump(cl)
		cancel()
		log.Debug("stream client disconnected")
	}()
}

// readPump only keeps the read deadline moving; clients send nothing.
func (h *Handler) readPump(cl *client) {
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(ctx context.Context, cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/magefree/ep3-server-go/internal/config"
)

const maxFrameSize = 64 << 10

// client pumps frames between one websocket connection and its room.
type client struct {
	conn   *websocket.Conn
	room   *Room
	peer   *peer
	cfg    config.WebSocketConfig
	logger *zap.Logger
}

func newUpgrader(cfg config.WebSocketConfig) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		// Clients are game launchers, not browsers on other origins.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
}

// serveBattle joins the connection to a room. The seat query parameter picks
// the seat; omitted or 255 joins as a watcher.
func (s *HTTPServer) serveBattle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, errRoomNotFound)
		return
	}
	room, err := s.battles.Room(id)
	if err != nil {
		writeError(w, err)
		return
	}
	seat := uint8(watcherSeat)
	if q := r.URL.Query().Get("seat"); q != "" {
		n, err := strconv.ParseUint(q, 10, 8)
		if err != nil {
			writeError(w, errBadSeat)
			return
		}
		seat = uint8(n)
	}
	p, err := room.attach(seat)
	if err != nil {
		writeError(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		room.detach(p)
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:   conn,
		room:   room,
		peer:   p,
		cfg:    s.cfg,
		logger: room.logger.With(zap.Uint8("seat", seat), zap.String("remote", r.RemoteAddr)),
	}
	c.logger.Info("client connected")
	go c.writePump()
	go c.readPump()
}

func (c *client) pongWait() time.Duration {
	return 2 * c.cfg.PingInterval
}

func (c *client) readPump() {
	defer func() {
		c.room.detach(c.peer)
		c.conn.Close()
		c.logger.Info("client disconnected")
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var f inboundFrame
		if err := json.Unmarshal(message, &f); err != nil {
			c.reject(0, status.New(codes.InvalidArgument, "frame is not valid JSON"))
			continue
		}
		if c.peer.seat == watcherSeat {
			c.reject(f.Seq, status.New(codes.PermissionDenied, "watchers cannot send commands"))
			continue
		}
		cmd, err := decodeCommand(c.peer.seat, f)
		if err != nil {
			c.reject(f.Seq, status.New(codes.InvalidArgument, err.Error()))
			continue
		}
		// Rejections are reported to this peer by the room.
		_, _ = c.room.Submit(context.Background(), f.Seq, cmd)
	}
}

func (c *client) reject(seq uint32, st *status.Status) {
	data, _ := json.Marshal(outboundFrame{Type: frameError, Seq: seq, Status: statusJSON(st)})
	c.room.sendToPeer(c.peer, data)
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.peer.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

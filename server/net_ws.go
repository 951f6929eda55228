package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 1 << 16
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws        *websocket.Conn
	send      chan []byte
	frameType int
}

func NewClientConn(ws *websocket.Conn, frameType int) *ClientConn {
	return &ClientConn{
		ws:        ws,
		send:      make(chan []byte, 64),
		frameType: frameType,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃新消息（防止阻塞 Tick）
	}
}

// Close 关闭发送队列，写协程发完剩余消息后关闭连接
func (c *ClientConn) Close() {
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump(send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(c.frameType, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息，解析后注入房间
func (c *ClientConn) readPump(room *Room, playerID string) {
	defer c.ws.Close()
	// 读泵退出时，通知房间在 Tick 协程中移除该玩家
	defer room.RequestLeave(playerID)
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugw("read error", "room", room.ID, "player", playerID, "err", err)
			}
			return
		}
		room.HandleFrame(playerID, payload)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：/ws?room=room-1，玩家 ID 由服务端分配
func (m *RoomManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = DefaultRoom
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "err", err)
		return
	}

	room := m.GetOrCreateRoom(roomID)
	playerID := uuid.NewString()

	client := NewClientConn(ws, m.codec.FrameType())
	send := client.send
	room.Join(playerID, client)

	go client.writePump(send)
	go client.readPump(room, playerID)
}

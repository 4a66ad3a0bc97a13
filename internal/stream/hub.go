// Package stream WebSocket 推送：行情快照与品种状态变更的实时分发
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	marketapp "github.com/wyfcoding/goldtrading/internal/marketdata/application"
	statusdomain "github.com/wyfcoding/goldtrading/internal/status/domain"
	"github.com/wyfcoding/goldtrading/pkg/logger"
)

const (
	// writeWait 单次写超时
	writeWait = 10 * time.Second
	// pongWait 等待客户端 pong 的最长时间
	pongWait = 60 * time.Second
	// pingPeriod ping 间隔，必须小于 pongWait
	pingPeriod = (pongWait * 9) / 10
	// sendBuffer 每客户端发送缓冲
	sendBuffer = 16
)

// Message 对外推送的统一信封
type Message struct {
	// Type 消息类型：priceUpdate / statusUpdate
	Type string `json:"type"`
	// Data 消息体
	Data interface{} `json:"data"`
}

// Client 一条 WebSocket 连接
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub 连接注册表。广播对慢客户端不等待：发送缓冲满即断开该连接，
// 一个卡死的消费者拖不慢整体推送。
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

// NewHub 创建推送中心
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
	}
}

// Run 事件循环，ctx 取消后关闭全部连接并退出
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case payload := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast 向全部连接推送一条消息
func (h *Hub) Broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error(context.Background(), "Failed to encode stream message", "type", msg.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		logger.Warn(context.Background(), "Stream broadcast queue full, dropping message", "type", msg.Type)
	}
}

// AttachPriceFeed 订阅行情快照并转为 priceUpdate 推送
func (h *Hub) AttachPriceFeed(ctx context.Context, prices *marketapp.PriceService) {
	updates, unsubscribe := prices.Subscribe(marketapp.DefaultSubscriberBuffer)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				h.Broadcast(Message{Type: "priceUpdate", Data: marketapp.SnapshotDTO(snap)})
			}
		}
	}()
}

// AttachStatusFeed 订阅状态变更并转为 statusUpdate 推送。
// 返回退订函数，交给调用方在停机时执行。
func (h *Hub) AttachStatusFeed(subscribe func(func(statusdomain.Event)) func()) func() {
	return subscribe(func(event statusdomain.Event) {
		h.Broadcast(Message{Type: "statusUpdate", Data: event})
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS 连接升级入口
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "WebSocket upgrade failed", "error", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump 丢弃入站消息，只维护 pong 刷新与连接生命周期
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump 发送循环，按 pingPeriod 保活
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

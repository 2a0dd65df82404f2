package chatws

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/services"
)

// Hub groups clients by room token and fans every persisted message out
// to the whole room, the sender included. The client side is responsible
// for recognising its own echo.
type Hub struct {
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Frame
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	roomToken string
	userID    int64
	username  string
	send      chan []byte
}

type sender interface {
	SendMessage(ctx context.Context, actorID int64, roomToken string, content string) (*services.ChatDelivery, error)
}

// Frame is the outbound wire format: what the original pushes to every
// member of a room.
type Frame struct {
	RoomToken string `json:"-"`
	SenderID  int64  `json:"sender_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type inboundFrame struct {
	Message string `json:"message"`
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Frame, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, roomToken string, userID int64, username string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		roomToken: roomToken,
		userID:    userID,
		username:  username,
		send:      make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.rooms[client.roomToken]
			if !ok {
				set = make(map[*Client]struct{})
				h.rooms[client.roomToken] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.rooms[client.roomToken]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.rooms, client.roomToken)
			}
		case frame := <-h.broadcast:
			h.deliver(frame)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) deliver(frame *Frame) {
	set, ok := h.rooms[frame.RoomToken]
	if !ok {
		return
	}

	encoded, err := json.Marshal(frame)
	if err != nil {
		log.Printf("chat hub encode frame: %v", err)
		return
	}

	for client := range set {
		select {
		case client.send <- encoded:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.rooms, frame.RoomToken)
	}
}

func (c *Client) ReadPump(service sender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming inboundFrame
		if err := json.Unmarshal(payload, &incoming); err != nil {
			continue
		}
		if strings.TrimSpace(incoming.Message) == "" {
			continue
		}

		delivery, err := service.SendMessage(
			context.Background(),
			c.userID,
			c.roomToken,
			incoming.Message,
		)
		if err != nil {
			log.Printf("chat send from user %d: %v", c.userID, err)
			continue
		}

		c.hub.broadcast <- &Frame{
			RoomToken: delivery.RoomToken,
			SenderID:  delivery.Message.Sender.ID,
			Username:  delivery.Message.Sender.Username,
			Message:   delivery.Message.Content,
			Timestamp: services.FormatChatTimestamp(delivery.Message.Timestamp),
		}
	}
}

func (c *Client) WritePump(writeTimeout time.Duration) {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if writeTimeout > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

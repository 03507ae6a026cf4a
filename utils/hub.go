package utils

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one connected websocket session for a user.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub routes in-app notifications to connected clients. One client per
// user id; a newer connection replaces the older one.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	mu         sync.Mutex
}

type Message struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
				close(client.Send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			client, ok := h.clients[message.UserID]
			if ok {
				select {
				case client.Send <- []byte(message.Content):
				default:
					close(client.Send)
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify pushes a message to the user's live connection, if any. It
// never blocks the caller.
func (h *Hub) Notify(userID, content string) {
	select {
	case h.broadcast <- Message{UserID: userID, Content: content}:
	default:
	}
}

// ServeWS upgrades the request and registers the connection for userID.
// The write pump drains the client's send channel until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{UserID: userID, Conn: conn, Send: make(chan []byte, 8)}
	h.register <- client

	go func() {
		defer conn.Close()
		for msg := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()
	go func() {
		// Reads are discarded; the first error unregisters the client.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister <- client
				return
			}
		}
	}()
	return nil
}

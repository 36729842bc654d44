package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/services"
)

// Message types sent to and received from clients
const (
	TypeTopicRefresh      = "election_refresh"
	TypeElectionList      = "election_list"
	TypeSubscribe         = "subscribe"
	TypeSubscribeCategory = "subscribe_category"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// ListProvider returns the current election list of a category
type ListProvider interface {
	Banner(ctx context.Context, categoryID int64) ([]models.ElectionListEntry, error)
}

// Hub maintains the set of active clients and fans election updates out to
// the clients subscribed to them
type Hub struct {
	log        logger.Logger
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	lists      ListProvider
}

// Client is a middleman between the websocket connection and the hub.
// A client without subscriptions receives every message.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan models.WSMessage

	mu         sync.Mutex
	topics     map[int64]bool
	categories map[int64]bool
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, lists ListProvider) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		lists:      lists,
	}
}

// Start begins the hub's main loop in a goroutine
func (h *Hub) Start() {
	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client connected", "total_clients", total)

			// Send the current lists of the categories the client asked for
			go h.sendInitialLists(client)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "total_clients", total)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				if !client.wants(message) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, unregister
					go func(c *Client) {
						h.unregister <- c
					}(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

func (h *Hub) sendInitialLists(c *Client) {
	if h.lists == nil {
		return
	}
	ctx := context.Background()
	for _, categoryID := range c.subscribedCategories() {
		list, err := h.lists.Banner(ctx, categoryID)
		if err != nil {
			h.log.Debug("Initial election list unavailable", "category_id", categoryID, "error", err)
			continue
		}
		h.mutex.RLock()
		if h.clients[c] {
			select {
			case c.send <- listMessage(categoryID, list):
			default:
			}
		}
		h.mutex.RUnlock()
	}
}

// BroadcastMessage queues a message for every interested client. A full
// queue drops the message; clients refetch on the next update.
func (h *Hub) BroadcastMessage(msg models.WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("Broadcast queue full, dropping message", "type", msg.Type, "topic_id", msg.TopicID)
	}
}

// BroadcastTopicRefresh implements services.Broadcaster
func (h *Hub) BroadcastTopicRefresh(topicID int64) {
	h.BroadcastMessage(models.WSMessage{Type: TypeTopicRefresh, TopicID: topicID})
}

// BroadcastElectionList implements services.Broadcaster
func (h *Hub) BroadcastElectionList(categoryID int64, list []models.ElectionListEntry) {
	h.BroadcastMessage(listMessage(categoryID, list))
}

var _ services.Broadcaster = (*Hub)(nil)

func listMessage(categoryID int64, list []models.ElectionListEntry) models.WSMessage {
	if list == nil {
		list = []models.ElectionListEntry{}
	}
	return models.WSMessage{
		Type: TypeElectionList,
		Payload: map[string]interface{}{
			"category_id": categoryID,
			"list":        list,
		},
	}
}

func (c *Client) subscribeTopic(topicID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topics == nil {
		c.topics = make(map[int64]bool)
	}
	c.topics[topicID] = true
}

func (c *Client) subscribeCategory(categoryID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.categories == nil {
		c.categories = make(map[int64]bool)
	}
	c.categories[categoryID] = true
}

func (c *Client) subscribedCategories() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.categories))
	for id := range c.categories {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) wants(msg models.WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.topics) == 0 && len(c.categories) == 0 {
		return true
	}
	switch msg.Type {
	case TypeTopicRefresh:
		return c.topics[msg.TopicID]
	case TypeElectionList:
		payload, ok := msg.Payload.(map[string]interface{})
		if !ok {
			return false
		}
		id, _ := payload["category_id"].(int64)
		return c.categories[id]
	}
	return true
}

// subscription is the payload of an incoming subscribe message
type subscription struct {
	Type       string `json:"type"`
	TopicID    int64  `json:"topic_id"`
	CategoryID int64  `json:"category_id"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		var msg subscription
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Debug("Ignoring malformed message", "error", err)
			continue
		}
		switch msg.Type {
		case TypeSubscribe:
			if msg.TopicID > 0 {
				c.subscribeTopic(msg.TopicID)
			}
		case TypeSubscribeCategory:
			if msg.CategoryID > 0 {
				c.subscribeCategory(msg.CategoryID)
				go c.hub.sendInitialLists(c)
			}
		default:
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

// ServeWs upgrades the request and registers the client. The optional
// topic_id and category_id query parameters subscribe it up front.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan models.WSMessage, 256),
	}
	if id, err := strconv.ParseInt(r.URL.Query().Get("topic_id"), 10, 64); err == nil && id > 0 {
		client.subscribeTopic(id)
	}
	if id, err := strconv.ParseInt(r.URL.Query().Get("category_id"), 10, 64); err == nil && id > 0 {
		client.subscribeCategory(id)
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

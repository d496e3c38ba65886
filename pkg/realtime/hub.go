package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hub fans ride and driver events out to connected clients. It is a
// read-only projection of engine state: clients subscribe, they never write.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
}

type Event struct {
	Type      string                 `json:"type"`
	Room      string                 `json:"room,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.dispatchEvent(event)
		}
	}
}

// PublishRideEvent notifies everyone watching a ride (its rider, offered
// drivers, admins).
func (h *Hub) PublishRideEvent(rideID primitive.ObjectID, eventType string, data map[string]interface{}) {
	h.publish(Event{
		Type:      eventType,
		Room:      RideRoom(rideID),
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
}

// PublishDriverEvent notifies a single driver's connections (offer arrived,
// offer cancelled).
func (h *Hub) PublishDriverEvent(driverID primitive.ObjectID, eventType string, data map[string]interface{}) {
	h.publish(Event{
		Type:      eventType,
		Room:      DriverRoom(driverID),
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
}

func (h *Hub) publish(event Event) {
	// Drop events when the hub is saturated; the engine never depends on a
	// subscriber being reachable, the sweeper restores anything missed.
	select {
	case h.broadcast <- event:
	default:
	}
}

func RideRoom(rideID primitive.ObjectID) string {
	return "ride_" + rideID.Hex()
}

func DriverRoom(driverID primitive.ObjectID) string {
	return "driver_" + driverID.Hex()
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true

	for _, room := range client.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]bool)
		}
		h.rooms[room][client] = true
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)

		for _, room := range client.rooms {
			if members, exists := h.rooms[room]; exists {
				delete(members, client)
				if len(members) == 0 {
					delete(h.rooms, room)
				}
			}
		}
	}
}

func (h *Hub) dispatchEvent(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.rooms[event.Room] {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; drop rather than block the hub.
		}
	}
}

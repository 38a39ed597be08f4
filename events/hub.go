package events

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yeremiapane/pix-checkout/models"
)

// Event types pushed to dashboard clients.
const (
	EventOrderUpdate   = "order_update"
	EventPaymentUpdate = "payment_update"
	EventKeyUpdate     = "api_key_update"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub holds every connected dashboard client.
type Hub struct {
	clients map[*websocket.Conn]string // conn -> role
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]string),
}

// RegisterClient adds a connection with its role.
func RegisterClient(conn *websocket.Conn, role string) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = role
}

// UnregisterClient drops and closes a connection.
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// BroadcastOrderUpdate pushes a changed order to every client.
func BroadcastOrderUpdate(order models.Order) {
	broadcast(Message{
		Event: EventOrderUpdate,
		Data:  order,
	})
}

// BroadcastPaymentUpdate pushes a payment status change.
func BroadcastPaymentUpdate(order models.Order, status string) {
	broadcast(Message{
		Event: EventPaymentUpdate,
		Data: map[string]interface{}{
			"order_id":   order.ID,
			"payment_id": order.PaymentID,
			"status":     status,
		},
	})
}

// BroadcastKeyUpdate tells dashboards the credential set changed.
func BroadcastKeyUpdate() {
	broadcast(Message{
		Event: EventKeyUpdate,
		Data:  nil,
	})
}

func broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error marshaling broadcast message: %v", err)
		return
	}

	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for conn := range hub.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("error writing to websocket client: %v", err)
			delete(hub.clients, conn)
			conn.Close()
		}
	}
}

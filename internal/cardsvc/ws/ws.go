package ws

import (
	"encoding/json"
	"net/http"

	"github.com/abenezer/gymcard-services/internal/cardsvc/broker"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Gateway upgrades viewer connections and bridges them onto the gym_cards
// fan-out group.
type Gateway struct {
	upgrader websocket.Upgrader
	hub      *broker.Hub
}

func NewGateway(hub *broker.Hub) *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hub: hub,
	}
}

func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	sub := g.hub.Subscribe()
	log.Infof("New WebSocket connection established: %s", sub.ID)

	go g.writeLoop(conn, sub)
	go g.readLoop(conn, sub)
}

// writeLoop drains the subscription into the socket. A write failure means
// the viewer is gone: drop it from the group and let the remaining
// subscribers carry on.
func (g *Gateway) writeLoop(conn *websocket.Conn, sub *broker.Subscriber) {
	for frame := range sub.C() {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Infof("write to subscriber %s failed, dropping: %v", sub.ID, err)
			g.hub.Unsubscribe(sub)
			break
		}
	}
	conn.Close()
}

// readLoop handles optional control messages from the viewer. Any JSON
// object with a type field is re-broadcast raw to the whole group;
// malformed frames are logged and skipped with the connection kept open.
func (g *Gateway) readLoop(conn *websocket.Conn, sub *broker.Subscriber) {
	defer func() {
		log.Infof("Closing WebSocket connection: %s", sub.ID)
		g.hub.Unsubscribe(sub)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for subscriber %s: %v", sub.ID, err)
			} else {
				log.Infof("WebSocket connection closed normally for subscriber: %s", sub.ID)
			}
			return
		}

		var control struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &control); err != nil {
			log.Errorf("Invalid JSON from subscriber %s: %v", sub.ID, err)
			continue
		}
		if control.Type == "" {
			continue
		}

		g.hub.Broadcast(raw)
	}
}

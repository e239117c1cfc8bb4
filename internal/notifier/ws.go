package notifier

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/digihealth/clinic-scheduler/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		// Browser clients connect from the separately-hosted frontend.
		return true
	},
}

// clientMessage is what a websocket client may send: topic management only.
type clientMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// ServeWS upgrades the connection and streams appointment events. Every
// client starts on the clinic-wide topic; a doctorId query parameter adds
// that doctor's feed, and clients can subscribe/unsubscribe at runtime.
func ServeWS(hub *Hub, logger *logging.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		sub := hub.Subscribe(TopicAppointments)
		if raw := r.URL.Query().Get("doctorId"); raw != "" {
			if doctorID, err := uuid.Parse(raw); err == nil {
				sub.Add(DoctorTopic(doctorID))
			}
		}

		go writePump(conn, sub, logger)
		readPump(conn, sub, logger)
	}
}

func readPump(conn *websocket.Conn, sub *Subscription, logger *logging.Logger) {
	defer func() {
		sub.Close()
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error", "error", err)
			}
			return
		}

		switch msg.Action {
		case "subscribe":
			if msg.Topic != "" {
				sub.Add(msg.Topic)
			}
		case "unsubscribe":
			if msg.Topic != "" {
				sub.Remove(msg.Topic)
			}
		}
	}
}

func writePump(conn *websocket.Conn, sub *Subscription, logger *logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("websocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

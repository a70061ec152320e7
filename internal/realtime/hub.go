package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/fixyhq/fixy/internal/models"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// Hub bridges Redis pub/sub topics to websocket connections. Each connection
// subscribes to the user's direct topic plus every room they belong to.
type Hub struct {
	db       *gorm.DB
	pub      *RedisPublisher
	upgrader websocket.Upgrader
}

// NewHub constructs a Hub.
func NewHub(db *gorm.DB, pub *RedisPublisher) *Hub {
	return &Hub{
		db:  db,
		pub: pub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and streams the user's events until the client
// disconnects. The HTTP layer authenticates before calling this.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint64) {
	if h == nil || h.pub == nil {
		http.Error(w, "realtime unavailable", http.StatusServiceUnavailable)
		return
	}

	topics, errTopics := h.userTopics(r.Context(), userID)
	if errTopics != nil {
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}

	conn, errUpgrade := h.upgrader.Upgrade(w, r, nil)
	if errUpgrade != nil {
		log.WithError(errUpgrade).Warn("realtime: websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub, errSub := h.pub.Subscribe(ctx, topics...)
	if errSub != nil {
		cancel()
		_ = conn.Close()
		return
	}

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, sub)

	cancel()
	_ = sub.Close()
	_ = conn.Close()
}

// userTopics lists the topics a user subscribes to.
func (h *Hub) userTopics(ctx context.Context, userID uint64) ([]string, error) {
	var rows []models.ChatroomParticipant
	if errFind := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	topics := make([]string, 0, len(rows)+1)
	topics = append(topics, UserTopic(userID))
	for _, row := range rows {
		topics = append(topics, RoomTopic(row.ChatroomID))
	}
	return topics, nil
}

// readPump drains client frames and cancels the connection on close.
func (h *Hub) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, errRead := conn.ReadMessage(); errRead != nil {
			return
		}
	}
}

// writePump forwards subscribed events and keeps the connection alive with
// pings. Duplicate delivery is possible; clients dedupe by event id.
func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, sub *redis.PubSub) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if errWrite := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); errWrite != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if errPing := conn.WriteMessage(websocket.PingMessage, nil); errPing != nil {
				return
			}
		}
	}
}

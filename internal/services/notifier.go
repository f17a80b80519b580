package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pdfchat-backend/internal/models"
)

// Notifier publishes ingestion progress to websocket clients through Redis pub/sub.
type Notifier struct {
	redis *redis.Client
}

func NewNotifier(redisClient *redis.Client) *Notifier {
	return &Notifier{redis: redisClient}
}

// PublishUpdate sends a WebSocket update via Redis pub/sub
func (n *Notifier) PublishUpdate(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	if n == nil || n.redis == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode update", "error", err)
		return
	}
	if err := n.redis.Publish(ctx, models.SessionChannel(sessionID), string(data)).Err(); err != nil {
		slog.Warn("failed to publish update", "session_id", sessionID, "error", err)
	}
}

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"pdfchat-backend/internal/models"
)

type staticTokens map[string]uuid.UUID

func (s staticTokens) ParseToken(token string) (uuid.UUID, error) {
	id, ok := s[token]
	if !ok {
		return uuid.Nil, errors.New("bad token")
	}
	return id, nil
}

func TestHandleWebSocket_RejectsBadToken(t *testing.T) {
	hub := NewHub(nil, staticTokens{})

	for _, target := range []string{"/ws", "/ws?token=nope"} {
		rr := httptest.NewRecorder()
		hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rr.Code)
		}
	}
}

func TestHub_RelaysPublishedUpdates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sessionID := uuid.New()
	hub := NewHub(client, staticTokens{"tok": sessionID})
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=tok"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the subscription before publishing
	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := client.PubSubNumSub(context.Background(), models.SessionChannel(sessionID)).Result()
		if err == nil && n[models.SessionChannel(sessionID)] > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscription not established")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := client.Publish(context.Background(), models.SessionChannel(sessionID), `{"type":"completed"}`).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"type":"completed"}` {
		t.Errorf("unexpected message %s", data)
	}
	if hub.Connections(sessionID) != 1 {
		t.Errorf("expected 1 connection, got %d", hub.Connections(sessionID))
	}
}

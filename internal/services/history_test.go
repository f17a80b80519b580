package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pdfchat-backend/internal/models"
)

func TestSaveChatHistory(t *testing.T) {
	history, err := models.NewChatHistory([][]string{{"胃がんの手術とは？", "胃の一部を切除します。"}})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out", "history.json")
	got, err := SaveChatHistory(path, history)
	if err != nil {
		t.Fatalf("SaveChatHistory: %v", err)
	}
	if got != path {
		t.Errorf("expected path %q, got %q", path, got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n    {\n        \"query\": \"胃がんの手術とは？\",\n        \"response\": \"胃の一部を切除します。\"\n    }\n]"
	if string(data) != want {
		t.Errorf("unexpected file content:\n%s", data)
	}

	loaded, err := LoadChatHistory(path)
	if err != nil {
		t.Fatalf("LoadChatHistory: %v", err)
	}
	last, _ := loaded.Last()
	if loaded.Len() != 1 || last.ResponseText() != "胃の一部を切除します。" {
		t.Errorf("unexpected loaded history %+v", loaded.Chats())
	}
}

func TestSaveChatHistory_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if _, err := SaveChatHistory(path, nil); err != nil {
		t.Fatalf("SaveChatHistory: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]" {
		t.Errorf("expected empty array, got %q", data)
	}
}

func TestNotifier_PublishUpdate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sessionID := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, models.SessionChannel(sessionID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	NewNotifier(client).PublishUpdate(ctx, sessionID, models.WSMessage{
		Type:    "status_update",
		Payload: models.StatusUpdate{Step: 1, StepName: "Extracting text"},
	})

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var decoded struct {
		Type    string              `json:"type"`
		Payload models.StatusUpdate `json:"payload"`
	}
	if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != "status_update" || decoded.Payload.StepName != "Extracting text" {
		t.Errorf("unexpected message %+v", decoded)
	}
}

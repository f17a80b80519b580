package services

import (
	"fmt"
	"os"
	"path/filepath"

	"pdfchat-backend/internal/models"
)

// SaveChatHistory writes the history.json artifact and returns its path.
func SaveChatHistory(path string, history *models.ChatHistory) (string, error) {
	if history == nil {
		history = &models.ChatHistory{}
	}
	data, err := history.ToJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode history: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write history: %w", err)
	}
	return path, nil
}

// LoadChatHistory reads a history.json artifact.
func LoadChatHistory(path string) (*models.ChatHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	history := &models.ChatHistory{}
	if err := history.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return history, nil
}

package handlers

import (
	"net/http"

	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/services"
)

type ConfigHandler struct {
	preset   *services.Preset
	pipeline string
	formats  []models.SupportedFormat
}

func NewConfigHandler(preset *services.Preset, pipeline string, formats []models.SupportedFormat) *ConfigHandler {
	return &ConfigHandler{preset: preset, pipeline: pipeline, formats: formats}
}

// Get returns what the page needs to render: title, examples, parameter
// sliders and accepted file types.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"title":           h.preset.Title,
		"pipeline":        h.pipeline,
		"models":          h.preset.Models,
		"examples":        h.preset.Examples,
		"parameters":      h.preset.Parameters,
		"parameters_note": h.preset.ParametersNote,
		"formats":         h.formats,
	})
}

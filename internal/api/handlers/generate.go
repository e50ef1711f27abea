// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obsidian-neural/loop-service/internal/api/middleware"
	"github.com/obsidian-neural/loop-service/internal/domain/errors"
	"github.com/obsidian-neural/loop-service/internal/services/orchestrator"
)

// GenerateHandler handles the generation endpoint.
type GenerateHandler struct {
	orchestrator *orchestrator.Orchestrator
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(orch *orchestrator.Orchestrator) *GenerateHandler {
	return &GenerateHandler{
		orchestrator: orch,
	}
}

// GenerateRequest represents the request body for a generation.
type GenerateRequest struct {
	Prompt             string  `json:"prompt"`
	BPM                float64 `json:"bpm" binding:"required,gt=0"`
	Key                string  `json:"key"`
	Measures           int     `json:"measures" binding:"omitempty,min=1,max=32"`
	GenerationDuration float64 `json:"generation_duration" binding:"omitempty,gt=0"`
	SampleRate         int     `json:"sample_rate" binding:"omitempty,min=8000,max=192000"`
	UseImage           bool    `json:"use_image"`
	ImageBase64        string  `json:"image_base64"`
	ImageTemperature   float64 `json:"image_temperature" binding:"omitempty,gt=0,lte=2"`
}

// Generate handles POST /generate
// @Summary Generate an audio loop
// @Description Runs the full generation pipeline and streams back a WAV payload
// @Tags Generation
// @Accept json
// @Produce audio/wav
// @Param X-API-Key header string true "API key"
// @Param request body GenerateRequest true "Generation parameters"
// @Success 200 {file} binary "WAV audio"
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Router /api/v1/generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()
	apiKey := middleware.GetAPIKey(c)

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewInvalidRequestError("invalid request body", err.Error()))
		return
	}

	result, err := h.orchestrator.Generate(ctx, apiKey, orchestrator.Request{
		Prompt:             req.Prompt,
		BPM:                req.BPM,
		Key:                req.Key,
		Measures:           req.Measures,
		GenerationDuration: req.GenerationDuration,
		SampleRate:         req.SampleRate,
		UseImage:           req.UseImage,
		ImageBase64:        req.ImageBase64,
		ImageTemperature:   req.ImageTemperature,
	})
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.Header("X-Request-ID", result.RequestID)
	c.Header("X-Duration", formatFloat(result.Duration))
	c.Header("X-BPM", formatFloat(result.BPM))
	c.Header("X-Key", result.Key)
	c.Header("X-Credits-Remaining", result.CreditsRemaining)
	if result.KeyExpires != "" {
		c.Header("X-Key-Expires", result.KeyExpires)
	}
	if result.GenerationError != "" {
		c.Header("X-Generation-Error", result.GenerationError)
	}

	c.Data(http.StatusOK, "audio/wav", result.Audio)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

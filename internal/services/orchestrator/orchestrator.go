// Package orchestrator implements the per-request generation control flow:
// authorize, decide, admit, synthesize, debit, respond. It owns the
// transient directive and all temporary artifacts for the lifetime of one
// request.
package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	domainerrors "github.com/obsidian-neural/loop-service/internal/domain/errors"
	"github.com/obsidian-neural/loop-service/internal/domain/models"
	"github.com/obsidian-neural/loop-service/internal/pkg/wav"
	"github.com/obsidian-neural/loop-service/internal/services/admission"
	"github.com/obsidian-neural/loop-service/internal/services/credits"
	"github.com/obsidian-neural/loop-service/internal/services/decision"
	"github.com/obsidian-neural/loop-service/internal/services/synth"
	"github.com/obsidian-neural/loop-service/internal/services/vision"
)

const (
	defaultKey         = "C Major"
	defaultDuration    = 6.0
	defaultSampleRate  = 48000
	defaultTemperature = 0.7
	minPromptLength    = 3
	beatsPerMeasure    = 4
)

// Request is a validated-enough generation request as received from the API
// layer.
type Request struct {
	Prompt             string
	BPM                float64
	Key                string
	Measures           int
	GenerationDuration float64
	SampleRate         int
	UseImage           bool
	ImageBase64        string
	ImageTemperature   float64
}

// Result is the outcome of one generation.
type Result struct {
	RequestID string
	Audio     []byte
	Duration  float64
	BPM       float64
	Key       string

	// CreditsRemaining is the post-debit remaining credit count, or
	// "unlimited" for unlimited keys.
	CreditsRemaining string

	// KeyExpires carries the credential expiry for limited keys, RFC 3339.
	KeyExpires string

	// GenerationError is set when the synthesis collaborator failed and
	// silence was substituted. The request still succeeds.
	GenerationError string
}

// Config holds the orchestrator dependencies and tuning.
type Config struct {
	Authority        credits.Authority
	Admission        *admission.Controller
	Engine           *decision.Engine
	Describer        vision.Describer
	Synthesizer      synth.Synthesizer
	BypassLLM        bool
	FallbackDuration time.Duration
}

// Orchestrator drives the generation pipeline for one request at a time.
type Orchestrator struct {
	authority        credits.Authority
	admission        *admission.Controller
	engine           *decision.Engine
	describer        vision.Describer
	synthesizer      synth.Synthesizer
	bypassLLM        bool
	fallbackDuration time.Duration
}

// New creates a new orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Authority == nil {
		return nil, fmt.Errorf("credit authority is required")
	}
	if cfg.Admission == nil {
		return nil, fmt.Errorf("admission controller is required")
	}
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}

	fallback := cfg.FallbackDuration
	if fallback == 0 {
		fallback = 4 * time.Second
	}

	return &Orchestrator{
		authority:        cfg.Authority,
		admission:        cfg.Admission,
		engine:           cfg.Engine,
		describer:        cfg.Describer,
		synthesizer:      cfg.Synthesizer,
		bypassLLM:        cfg.BypassLLM,
		fallbackDuration: fallback,
	}, nil
}

// Generate runs the full per-request sequence. Each step short-circuits on
// failure; nothing expensive happens before the credit check passes.
func (o *Orchestrator) Generate(ctx context.Context, apiKey string, req Request) (*Result, error) {
	requestID := uuid.NewString()
	userKey := credits.UserKey(apiKey)

	check, err := o.authority.Check(ctx, apiKey)
	if err != nil {
		return nil, domainerrors.NewInternalError("credit check failed", err)
	}
	if err := checkError(check); err != nil {
		return nil, err
	}

	req = applyDefaults(req)
	if err := validate(req); err != nil {
		return nil, err
	}

	directive, err := o.buildDirective(ctx, userKey, req)
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Str("request_id", requestID).
		Str("user_key", userKey).
		Logger()
	logger.Info().
		Str("prompt", directive.Prompt).
		Float64("bpm", directive.BPM).
		Str("key", directive.Key).
		Float64("duration", directive.Duration).
		Msg("generation requested")

	if err := o.admission.Acquire(ctx); err != nil {
		return nil, err
	}
	audio, genErr := o.synthesize(ctx, directive, req.SampleRate)

	duration, err := wav.Duration(audio)
	if err != nil || duration < 100*time.Millisecond {
		// Unusable payload from the collaborator counts as a failure.
		if genErr == nil {
			genErr = fmt.Errorf("generated audio is too short or empty")
		}
		audio = wav.Silence(o.fallbackDuration, req.SampleRate)
		duration = o.fallbackDuration
	}

	if genErr != nil {
		logger.Warn().Err(genErr).Msg("synthesis failed, substituting silence")
	}

	if err := o.authority.Debit(ctx, apiKey); err != nil {
		// The audio was produced; losing the debit would hand out free
		// generations, so surface the inconsistency.
		return nil, domainerrors.NewInternalError("failed to record credit usage", err)
	}

	result := &Result{
		RequestID: requestID,
		Audio:     audio,
		Duration:  duration.Seconds(),
		BPM:       req.BPM,
		Key:       req.Key,
	}
	if genErr != nil {
		result.GenerationError = genErr.Error()
	}

	o.fillCreditHeaders(ctx, apiKey, result)

	logger.Info().Float64("audio_seconds", result.Duration).Msg("generation complete")
	return result, nil
}

// buildDirective produces the generation directive, either from one-off
// image analysis, from the conversational decision engine, or directly from
// the caller's fields.
func (o *Orchestrator) buildDirective(ctx context.Context, userKey string, req Request) (models.Directive, error) {
	if req.UseImage {
		return o.imageDirective(ctx, req)
	}

	direct := models.Directive{
		Prompt:   req.Prompt,
		Key:      req.Key,
		BPM:      req.BPM,
		Duration: req.GenerationDuration,
	}

	if o.bypassLLM || o.engine == nil {
		return direct, nil
	}

	directive, err := o.engine.Decide(ctx, userKey, req.Prompt, req.BPM, req.Key, req.GenerationDuration)
	if err != nil {
		if domainerrors.IsMalformedDirective(err) {
			// Locally recoverable: fall back to the caller's own words.
			log.Warn().Err(err).Msg("falling back to direct directive")
			return direct, nil
		}
		return models.Directive{}, err
	}
	return directive, nil
}

// imageDirective runs the stateless image path: decode the payload to a
// temp file, have the vision collaborator describe it, and build the
// directive from the description. The temp file is removed on all paths.
func (o *Orchestrator) imageDirective(ctx context.Context, req Request) (models.Directive, error) {
	if o.describer == nil {
		return models.Directive{}, domainerrors.NewInvalidRequestError("image analysis is not available", "")
	}

	imagePath, err := writeImageTemp(req.ImageBase64)
	if err != nil {
		return models.Directive{}, err
	}
	defer func() {
		if err := os.Remove(imagePath); err != nil {
			log.Warn().Err(err).Str("path", imagePath).Msg("failed to delete temp image")
		}
	}()

	description, err := o.describer.Describe(ctx, imagePath, req.BPM, req.Key, req.ImageTemperature)
	if err != nil {
		return models.Directive{}, domainerrors.NewMalformedDirectiveError(err)
	}

	return models.Directive{
		Prompt:   description.ExtractPrompt(req.BPM, req.Key),
		Key:      req.Key,
		BPM:      req.BPM,
		Duration: req.GenerationDuration,
	}, nil
}

// synthesize invokes the synthesis collaborator while holding the admission
// slot. The caller has already acquired; the slot is released on every exit
// path before the result propagates, so a failing collaborator can never
// leave the slot held.
func (o *Orchestrator) synthesize(ctx context.Context, directive models.Directive, sampleRate int) ([]byte, error) {
	defer o.admission.Release()

	return o.synthesizer.Generate(ctx, directive.Prompt, directive.BPM, directive.Duration, sampleRate)
}

// fillCreditHeaders re-reads the ledger after the debit so the response
// reflects the post-generation balance.
func (o *Orchestrator) fillCreditHeaders(ctx context.Context, apiKey string, result *Result) {
	result.CreditsRemaining = "unlimited"

	check, err := o.authority.Check(ctx, apiKey)
	if err != nil || check.Record == nil {
		return
	}
	if check.Record.IsLimited {
		result.CreditsRemaining = fmt.Sprintf("%d", check.Record.CreditsRemaining())
		if check.Record.ExpiresAt != nil {
			result.KeyExpires = check.Record.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
}

func checkError(check credits.Result) error {
	switch check.Status {
	case credits.StatusOK:
		return nil
	case credits.StatusNotFound:
		return domainerrors.NewCredentialNotFoundError()
	case credits.StatusExpired:
		return domainerrors.NewCredentialExpiredError()
	case credits.StatusExhausted:
		used, total := int64(0), int64(0)
		if check.Record != nil {
			used, total = check.Record.CreditsUsed, check.Record.TotalCredits
		}
		return domainerrors.NewCredentialExhaustedError(used, total)
	default:
		return domainerrors.NewInternalError(fmt.Sprintf("unknown credit status %q", check.Status), nil)
	}
}

func applyDefaults(req Request) Request {
	if req.Key == "" {
		req.Key = defaultKey
	}
	if req.SampleRate == 0 {
		req.SampleRate = defaultSampleRate
	}
	if req.GenerationDuration == 0 {
		if req.Measures > 0 && req.BPM > 0 {
			req.GenerationDuration = float64(req.Measures*beatsPerMeasure) / req.BPM * 60
		} else {
			req.GenerationDuration = defaultDuration
		}
	}
	if req.ImageTemperature == 0 {
		req.ImageTemperature = defaultTemperature
	}
	return req
}

func validate(req Request) error {
	if req.BPM <= 0 {
		return domainerrors.NewInvalidRequestError("bpm must be positive", "")
	}
	if req.UseImage {
		if strings.TrimSpace(req.ImageBase64) == "" {
			return domainerrors.NewInvalidRequestError("use_image is set but no image_base64 provided", "")
		}
		return nil
	}
	if len(strings.TrimSpace(req.Prompt)) < minPromptLength {
		return domainerrors.NewInvalidRequestError("prompt must be at least 3 characters long (or provide an image)", "")
	}
	return nil
}

// writeImageTemp decodes the base64 payload (tolerating a data URL prefix)
// into a temp file and returns its path.
func writeImageTemp(imageBase64 string) (string, error) {
	if idx := strings.Index(imageBase64, "base64,"); idx >= 0 {
		imageBase64 = imageBase64[idx+len("base64,"):]
	}

	imageBytes, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", domainerrors.NewInvalidRequestError("image_base64 is not valid base64", err.Error())
	}

	tmp, err := os.CreateTemp("", "loop-image-*.jpg")
	if err != nil {
		return "", domainerrors.NewInternalError("failed to create temp image", err)
	}
	if _, err := tmp.Write(imageBytes); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", domainerrors.NewInternalError("failed to write temp image", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", domainerrors.NewInternalError("failed to write temp image", err)
	}

	return tmp.Name(), nil
}

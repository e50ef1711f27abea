// Package decision implements the conversational directive engine. It turns
// a user intent plus bounded session history into a structured generation
// directive by consulting the language-model collaborator.
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	domainerrors "github.com/obsidian-neural/loop-service/internal/domain/errors"
	"github.com/obsidian-neural/loop-service/internal/domain/models"
	"github.com/obsidian-neural/loop-service/internal/services/sessions"
)

// SystemPrompt seeds every conversational session. An unambiguous new
// request overrides prior context; a vague one may blend with history.
const SystemPrompt = `You are a smart music sample generator. The user provides you with keywords, you generate a coherent prompt.

PRIORITY RULES:
1. IF the user requests a specific style/genre, IGNORE the history and generate exactly what they ask for
2. IF it's a vague or similar request, you can consider the history for variety
3. ALWAYS respect the user's exact keywords

TECHNICAL RULES:
- Create a consistent and accurate generation prompt
- For the key: use the one provided

EXAMPLES:
User: "deep techno rhythm kick hardcore" -> prompt: "deep techno kick drum, hardcore rhythm, driving 4/4 beat, industrial"
User: "ambient space" -> prompt: "ambient atmospheric space soundscape, ethereal pads"
User: "jazzy piano" -> prompt: "jazz piano, smooth chords, melodic improvisation"`

// directiveSchema is the structured-output schema required from the
// collaborator. The prompt and tonal key are mandatory.
var directiveSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"action_type": {"type": "string", "enum": ["generate_sample"]},
		"parameters": {
			"type": "object",
			"properties": {
				"sample_details": {
					"type": "object",
					"properties": {
						"musicgen_prompt": {"type": "string"},
						"key": {"type": "string"}
					},
					"required": ["musicgen_prompt", "key"]
				}
			},
			"required": ["sample_details"]
		},
		"reasoning": {"type": "string"}
	},
	"required": ["action_type", "parameters", "reasoning"]
}`)

// directiveEnvelope mirrors the collaborator's structured output.
type directiveEnvelope struct {
	ActionType string `json:"action_type"`
	Parameters struct {
		SampleDetails struct {
			MusicgenPrompt string `json:"musicgen_prompt"`
			Key            string `json:"key"`
		} `json:"sample_details"`
	} `json:"parameters"`
	Reasoning string `json:"reasoning"`
}

// Completer is the language-model collaborator contract.
type Completer interface {
	Complete(ctx context.Context, turns []models.Turn, schema json.RawMessage) (string, error)
}

// Engine produces generation directives from session history.
type Engine struct {
	store     *sessions.Store
	completer Completer
}

// NewEngine creates a new decision engine.
func NewEngine(store *sessions.Store, completer Completer) *Engine {
	return &Engine{
		store:     store,
		completer: completer,
	}
}

// Decide builds the priority-rule user turn, consults the collaborator with
// the bounded turn sequence, and parses the structured directive.
//
// The user/assistant exchange is committed to the session only after the
// collaborator produced a valid directive: a malformed response fails with
// MALFORMED_DIRECTIVE and leaves the turn sequence completely unchanged, so
// the caller can retry or fall back to a direct directive.
func (e *Engine) Decide(ctx context.Context, userKey, intent string, bpm float64, key string, duration float64) (models.Directive, error) {
	userTurn := buildUserPrompt(intent, bpm, key)

	// Snapshot under the store lock, then call the collaborator without
	// holding it. The candidate user turn rides on the copy only.
	turns := e.store.Snapshot(userKey)
	turns = append(turns, models.Turn{Role: models.RoleUser, Content: userTurn})

	raw, err := e.completer.Complete(ctx, turns, directiveSchema)
	if err != nil {
		return models.Directive{}, domainerrors.NewMalformedDirectiveError(err)
	}

	envelope, err := parseEnvelope(raw)
	if err != nil {
		return models.Directive{}, domainerrors.NewMalformedDirectiveError(err)
	}

	directive := models.Directive{
		Prompt:   envelope.Parameters.SampleDetails.MusicgenPrompt,
		Key:      envelope.Parameters.SampleDetails.Key,
		BPM:      bpm,
		Duration: duration,
	}

	serialized, err := json.Marshal(envelope)
	if err != nil {
		return models.Directive{}, domainerrors.NewMalformedDirectiveError(err)
	}

	// Commit the exchange atomically; the store applies the window trim.
	e.store.AppendExchange(userKey, userTurn, string(serialized))

	return directive, nil
}

// Reset discards the user's conversational history.
func (e *Engine) Reset(userKey string) {
	e.store.Reset(userKey)
}

func buildUserPrompt(intent string, bpm float64, key string) string {
	return fmt.Sprintf(`NEW USER PROMPT
Keywords: %s

Context:
- Tempo: %.0f BPM
- Key: %s

IMPORTANT: This new prompt has PRIORITY. If it's different from your previous generation, ABANDON the previous style completely and focus on this new prompt.`, intent, bpm, key)
}

func parseEnvelope(raw string) (*directiveEnvelope, error) {
	raw = strings.TrimSpace(raw)
	if after, found := strings.CutPrefix(raw, "```json"); found {
		raw, _, _ = strings.Cut(after, "```")
	}

	var envelope directiveEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("invalid directive JSON: %w", err)
	}
	if envelope.Parameters.SampleDetails.MusicgenPrompt == "" {
		return nil, fmt.Errorf("directive is missing the generation prompt")
	}
	if envelope.Parameters.SampleDetails.Key == "" {
		return nil, fmt.Errorf("directive is missing the tonal key")
	}
	return &envelope, nil
}

package decision_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/obsidian-neural/loop-service/internal/domain/errors"
	"github.com/obsidian-neural/loop-service/internal/domain/models"
	"github.com/obsidian-neural/loop-service/internal/services/decision"
	"github.com/obsidian-neural/loop-service/internal/services/sessions"
)

const validDirective = `{
	"action_type": "generate_sample",
	"parameters": {
		"sample_details": {
			"musicgen_prompt": "deep techno kick drum, driving 4/4 beat",
			"key": "A Minor"
		}
	},
	"reasoning": "user asked for techno"
}`

// fakeCompleter returns canned collaborator output and records the turns it
// was called with.
type fakeCompleter struct {
	response string
	err      error
	calls    [][]models.Turn
}

func (f *fakeCompleter) Complete(ctx context.Context, turns []models.Turn, schema json.RawMessage) (string, error) {
	copied := make([]models.Turn, len(turns))
	copy(copied, turns)
	f.calls = append(f.calls, copied)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestEngine(completer *fakeCompleter) (*decision.Engine, *sessions.Store) {
	store := sessions.NewStore(sessions.Config{SystemPrompt: decision.SystemPrompt})
	return decision.NewEngine(store, completer), store
}

func TestEngine_Decide_ValidDirective(t *testing.T) {
	completer := &fakeCompleter{response: validDirective}
	engine, store := newTestEngine(completer)

	directive, err := engine.Decide(context.Background(), "user-a", "deep techno kick", 128, "A Minor", 6)

	require.NoError(t, err)
	assert.Equal(t, "deep techno kick drum, driving 4/4 beat", directive.Prompt)
	assert.Equal(t, "A Minor", directive.Key)
	assert.Equal(t, 128.0, directive.BPM)
	assert.Equal(t, 6.0, directive.Duration)

	// The exchange was committed.
	turns := store.Snapshot("user-a")
	require.Len(t, turns, 3)
	assert.Equal(t, models.RoleUser, turns[1].Role)
	assert.Contains(t, turns[1].Content, "deep techno kick")
	assert.Contains(t, turns[1].Content, "128 BPM")
	assert.Contains(t, turns[1].Content, "PRIORITY")
	assert.Equal(t, models.RoleAssistant, turns[2].Role)
}

func TestEngine_Decide_SendsHistoryPlusCandidateTurn(t *testing.T) {
	completer := &fakeCompleter{response: validDirective}
	engine, store := newTestEngine(completer)
	store.AppendExchange("user-a", "earlier prompt", "earlier reply")

	_, err := engine.Decide(context.Background(), "user-a", "jazzy piano", 90, "C Major", 4)

	require.NoError(t, err)
	require.Len(t, completer.calls, 1)
	sent := completer.calls[0]
	// system + prior exchange + new candidate user turn
	require.Len(t, sent, 4)
	assert.Equal(t, models.RoleSystem, sent[0].Role)
	assert.Equal(t, "earlier prompt", sent[1].Content)
	assert.Equal(t, models.RoleUser, sent[3].Role)
	assert.Contains(t, sent[3].Content, "jazzy piano")
}

func TestEngine_Decide_StripsMarkdownFence(t *testing.T) {
	completer := &fakeCompleter{response: "```json\n" + validDirective + "\n```"}
	engine, _ := newTestEngine(completer)

	directive, err := engine.Decide(context.Background(), "user-a", "techno", 128, "A Minor", 6)

	require.NoError(t, err)
	assert.Equal(t, "deep techno kick drum, driving 4/4 beat", directive.Prompt)
}

func TestEngine_Decide_InvalidJSONLeavesSessionUnchanged(t *testing.T) {
	completer := &fakeCompleter{response: "sorry, I cannot do that"}
	engine, store := newTestEngine(completer)
	store.AppendExchange("user-a", "earlier prompt", "earlier reply")
	before := store.Snapshot("user-a")

	_, err := engine.Decide(context.Background(), "user-a", "techno", 128, "A Minor", 6)

	require.Error(t, err)
	assert.True(t, domainerrors.IsMalformedDirective(err))
	assert.Equal(t, before, store.Snapshot("user-a"), "a failed decision must not commit any turn")
}

func TestEngine_Decide_MissingPromptIsMalformed(t *testing.T) {
	completer := &fakeCompleter{response: `{
		"action_type": "generate_sample",
		"parameters": {"sample_details": {"key": "A Minor"}},
		"reasoning": "no prompt"
	}`}
	engine, store := newTestEngine(completer)

	_, err := engine.Decide(context.Background(), "user-a", "techno", 128, "A Minor", 6)

	require.Error(t, err)
	assert.True(t, domainerrors.IsMalformedDirective(err))
	assert.Len(t, store.Snapshot("user-a"), 1)
}

func TestEngine_Decide_MissingKeyIsMalformed(t *testing.T) {
	completer := &fakeCompleter{response: `{
		"action_type": "generate_sample",
		"parameters": {"sample_details": {"musicgen_prompt": "techno kick"}},
		"reasoning": "no key"
	}`}
	engine, _ := newTestEngine(completer)

	_, err := engine.Decide(context.Background(), "user-a", "techno", 128, "A Minor", 6)

	require.Error(t, err)
	assert.True(t, domainerrors.IsMalformedDirective(err))
}

func TestEngine_Decide_CollaboratorErrorIsMalformed(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("connection refused")}
	engine, store := newTestEngine(completer)

	_, err := engine.Decide(context.Background(), "user-a", "techno", 128, "A Minor", 6)

	require.Error(t, err)
	assert.True(t, domainerrors.IsMalformedDirective(err))
	assert.Len(t, store.Snapshot("user-a"), 1)
}

func TestEngine_Decide_HistoryStaysBounded(t *testing.T) {
	completer := &fakeCompleter{response: validDirective}
	engine, store := newTestEngine(completer)

	for i := 0; i < 10; i++ {
		_, err := engine.Decide(context.Background(), "user-a", fmt.Sprintf("prompt %d", i), 128, "A Minor", 6)
		require.NoError(t, err)
	}

	turns := store.Snapshot("user-a")
	assert.LessOrEqual(t, len(turns), sessions.DefaultHistoryCeiling)
	assert.Equal(t, models.RoleSystem, turns[0].Role)
}

func TestEngine_Reset_DiscardsHistory(t *testing.T) {
	completer := &fakeCompleter{response: validDirective}
	engine, store := newTestEngine(completer)

	_, err := engine.Decide(context.Background(), "user-a", "techno", 128, "A Minor", 6)
	require.NoError(t, err)
	require.Len(t, store.Snapshot("user-a"), 3)

	engine.Reset("user-a")

	turns := store.Snapshot("user-a")
	require.Len(t, turns, 1)
	assert.Equal(t, models.RoleSystem, turns[0].Role)
}

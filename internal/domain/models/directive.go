package models

// Directive is the structured description of what to synthesize. It is
// transient: produced by the decision engine (or built directly from caller
// fields) and consumed once by the synthesis collaborator.
type Directive struct {
	Prompt   string  `json:"prompt"`
	Key      string  `json:"key"`
	BPM      float64 `json:"bpm"`
	Duration float64 `json:"duration"`
}

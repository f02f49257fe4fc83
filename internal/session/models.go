package session

import (
	"strings"
	"time"
)

// Stage represents the lifecycle of a dubbing session.
type Stage string

const (
	StageInput        Stage = "input"
	StageTranscribing Stage = "transcribing"
	StageTranscribed  Stage = "transcribed"
	StageTranslating  Stage = "translating"
	StageTranslated   Stage = "translated"
	StageSynthesizing Stage = "synthesizing"
	StageSynthesized  Stage = "synthesized"
	StageValidating   Stage = "validating"
	StageValidated    Stage = "validated"
	StageError        Stage = "error"
)

var allStages = []Stage{
	StageInput,
	StageTranscribing,
	StageTranscribed,
	StageTranslating,
	StageTranslated,
	StageSynthesizing,
	StageSynthesized,
	StageValidating,
	StageValidated,
	StageError,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

var processingStages = map[Stage]struct{}{
	StageTranscribing: {},
	StageTranslating:  {},
	StageSynthesizing: {},
	StageValidating:   {},
}

// Action identifies one pipeline step a caller can request.
type Action string

const (
	ActionTranscribe Action = "transcribe"
	ActionTranslate  Action = "translate"
	ActionSynthesize Action = "synthesize"
	ActionValidate   Action = "validate"
)

// Transition describes the stage movement one action performs.
type Transition struct {
	From       Stage
	Processing Stage
	Done       Stage
}

var transitions = map[Action]Transition{
	ActionTranscribe: {From: StageInput, Processing: StageTranscribing, Done: StageTranscribed},
	ActionTranslate:  {From: StageTranscribed, Processing: StageTranslating, Done: StageTranslated},
	ActionSynthesize: {From: StageTranslated, Processing: StageSynthesizing, Done: StageSynthesized},
	ActionValidate:   {From: StageSynthesized, Processing: StageValidating, Done: StageValidated},
}

// TransitionFor returns the transition an action performs.
func TransitionFor(action Action) (Transition, bool) {
	t, ok := transitions[action]
	return t, ok
}

// ActionOrder returns actions in pipeline order.
func ActionOrder() []Action {
	return []Action{ActionTranscribe, ActionTranslate, ActionSynthesize, ActionValidate}
}

// ParseAction converts a string into a known Action.
func ParseAction(value string) (Action, bool) {
	normalized := Action(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := transitions[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether a stage reflects an in-flight operation.
func IsProcessing(stage Stage) bool {
	_, ok := processingStages[stage]
	return ok
}

// IsTerminal reports whether a stage permits no further advance.
func IsTerminal(stage Stage) bool {
	return stage == StageValidated || stage == StageError
}

// Session is one user's end-to-end dubbing workflow instance.
type Session struct {
	ID             string
	Stage          Stage
	SourceLanguage string
	TargetLanguage string
	AudioPath      string
	SynthesisPath  string
	ErrorMessage   string
	// FailedAction records which action was in flight when the session
	// entered the error stage, so retry can resume it.
	FailedAction Action
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Segment is a time-bounded unit of speech with speaker attribution.
// IDs are assigned at creation, are stable for the session's lifetime, and
// are never reused. Start and End are seconds; overlap between segments is
// permitted but each segment must satisfy Start < End.
type Segment struct {
	ID             int     `json:"segment_id"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Speaker        string  `json:"speaker"`
	Text           string  `json:"text"`
	TranslatedText string  `json:"translated_text,omitempty"`
}

// Transcript joins segment texts in order into one string.
func Transcript(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// TranslatedTranscript joins translated segment texts in order.
func TranslatedTranscript(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.TranslatedText); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// ProgressRecord is the latest progress observation for a session.
type ProgressRecord struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Percent   float64   `json:"percent"`
	Completed bool      `json:"completed"`
	Error     bool      `json:"error"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the record is frozen until the next stage.
func (r ProgressRecord) Terminal() bool {
	return r.Completed || r.Error
}

// ValidationResult maps metric names to raw scores plus the derived composite.
// Immutable once computed; a new validation overwrites rather than merges.
type ValidationResult struct {
	Metrics        map[string]float64 `json:"metrics"`
	Composite      float64            `json:"composite"`
	WeightsVersion string             `json:"weights_version"`
	ComputedAt     time.Time          `json:"computed_at"`
}

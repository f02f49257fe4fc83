package providers

import (
	"context"

	"dubflow/internal/session"
)

// Transcriber converts an audio file into diarized segments.
type Transcriber interface {
	// Transcribe returns time-ordered segments and the detected source
	// language tag.
	Transcribe(ctx context.Context, audioPath string) ([]session.Segment, string, error)
}

// Translator renders segment texts from one language to another. The
// returned segments keep their IDs, timing, and speakers; only
// TranslatedText is filled in.
type Translator interface {
	Brand() string
	Translate(ctx context.Context, segs []session.Segment, sourceLang, targetLang string) ([]session.Segment, error)
}

// VoiceConfig selects the synthesis voice.
type VoiceConfig struct {
	Voice    string
	Language string
}

// Synthesizer renders translated segments into an audio file and returns
// its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, segs []session.Segment, voice VoiceConfig) (string, error)
}

// MetricComputer produces one quality sub-metric in [0,1] from a reference
// and a candidate text.
type MetricComputer interface {
	Name() string
	Compute(ctx context.Context, reference, candidate string) (float64, error)
}

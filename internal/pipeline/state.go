package pipeline

import (
	"errors"
	"fmt"
)

// State is a phase of a caption job.
type State string

const (
	StateLoadingModel         State = "LoadingModel"
	StateResolvingSource      State = "ResolvingSource"
	StateTranscribing         State = "Transcribing"
	StateTranscribingFallback State = "TranscribingFallback"
	StateGeneratingTracks     State = "GeneratingTracks"
	StatePublishing           State = "Publishing"
	StateDone                 State = "Done"
	StateFailed               State = "Failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	"":                        {StateLoadingModel},
	StateLoadingModel:         {StateResolvingSource, StateFailed},
	StateResolvingSource:      {StateTranscribing, StateFailed},
	StateTranscribing:         {StateTranscribingFallback, StateGeneratingTracks, StateFailed},
	StateTranscribingFallback: {StateGeneratingTracks, StateFailed},
	StateGeneratingTracks:     {StatePublishing, StateFailed},
	StatePublishing:           {StateDone, StateFailed},
}

// CanTransition reports whether the job may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Kind classifies job errors.
type Kind string

const (
	// logged by the source resolver, never returned
	KindSourceResolutionDegraded Kind = "SourceResolutionDegraded"

	KindModelLoadFailure       Kind = "ModelLoadFailure"
	KindRecognitionFailure     Kind = "RecognitionFailure"
	KindEmptyTranscript        Kind = "EmptyTranscript"
	KindTrackGenerationFailure Kind = "TrackGenerationFailure"
	KindPublishFailure         Kind = "PublishFailure"
)

// ErrEmptyTranscript is wrapped when recognition produced no usable text.
var ErrEmptyTranscript = errors.New("no transcription segments were produced")

// Error is the fatal error of a failed job.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var jobErr *Error
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	return ""
}

func fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

package interview

// UtteranceCallbacks are supplied to the synthesizer at dispatch time. All
// fields are optional.
type UtteranceCallbacks struct {
	OnStart func()
	OnEnd   func()
	OnError func(err error)
	// OnBoundary reports progress through the text; upTo is the byte offset of
	// the end of the word just spoken.
	OnBoundary func(upTo int)
}

// Synthesizer is the text-to-speech output channel. Speak must not block on
// audio delivery; events arrive through the callbacks. Cancel stops any
// in-flight utterance.
type Synthesizer interface {
	Speak(text string, cb UtteranceCallbacks)
	Cancel()
}

// Recognizer is the speech-to-text input channel. Start begins a listening
// session, Stop ends it gracefully (flushing a pending final), Abort discards
// it. Recognition events reach the engine through its Handle methods; the
// wiring is done by whoever constructs the session.
type Recognizer interface {
	Start() error
	Stop()
	Abort()
}

// RecogErrorKind classifies recognition-channel errors for the engine's
// retry and turn-release policy.
type RecogErrorKind string

const (
	// RecogErrNoSpeech means the channel heard nothing; the session continues.
	RecogErrNoSpeech RecogErrorKind = "no-speech"
	// RecogErrAborted is the expected outcome of a manual stop.
	RecogErrAborted RecogErrorKind = "aborted"
	// RecogErrNetwork is transient; the engine schedules one restart.
	RecogErrNetwork RecogErrorKind = "network"
	// RecogErrOther covers everything else.
	RecogErrOther RecogErrorKind = "other"
)

// Callbacks let a session observe the engine. All fields are optional; they
// are invoked outside the engine lock.
type Callbacks struct {
	// OnCaption delivers live caption text: full prompt at dispatch, boundary
	// progress while speaking, interim transcript while listening.
	OnCaption func(text string)
	// OnStageChange fires when the machine enters a new stage.
	OnStageChange func(stage Stage, questionIndex int)
	// OnPresentationPause fires when the user starts speaking over idle AI
	// presentation; OnPresentationResume when their session ends while the AI
	// is mid-utterance.
	OnPresentationPause  func()
	OnPresentationResume func()
	// OnConcluded fires once, after the conclusion utterance completes.
	OnConcluded func()
}

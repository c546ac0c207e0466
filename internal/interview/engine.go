package interview

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// timerSlot names a scheduled task. At most one timer lives in a slot;
// scheduling into an occupied slot replaces the pending timer.
type timerSlot string

const (
	slotPreSpeak      timerSlot = "pre-speak"
	slotAdvance       timerSlot = "advance"
	slotEnableListen  timerSlot = "enable-listen"
	slotListenStart   timerSlot = "listen-start"
	slotListenRestart timerSlot = "listen-restart"
	slotNetworkRetry  timerSlot = "network-retry"
)

// Options configures an Engine. Zero values pick production defaults.
type Options struct {
	Clock     Clock
	Timings   Timings
	Logger    *zap.Logger
	Callbacks Callbacks
}

// Engine is the stage and turn authority for one interview session. It owns
// the turn state and the spoken set; the output queue and the listening
// session take direction from it through the transition handlers below.
//
// All state is guarded by a single mutex. Handlers mutate under the lock and
// collect the external effects (synthesizer, recognizer, session callbacks)
// to run after it is released, so collaborators may call back into the engine
// synchronously.
type Engine struct {
	synth     Synthesizer
	recog     Recognizer
	clock     Clock
	timings   Timings
	log       *zap.Logger
	callbacks Callbacks

	mu           sync.Mutex
	conversation *Log
	prompts      []Prompt

	contentLoaded bool
	stage         Stage
	owner         Speaker
	questionIndex int
	allowUser     bool
	terminal      bool
	closed        bool

	queue   outputQueue
	busy    bool
	spoken  map[string]struct{}
	current utteranceJob

	synthActive  bool
	micEnabled   bool
	listening    bool
	userSpeaking bool
	liveText     string

	timers map[timerSlot]Timer
}

// New constructs an Engine wired to the given output and input channels.
func New(synth Synthesizer, recog Recognizer, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	timings := opts.Timings
	if timings == (Timings{}) {
		timings = DefaultTimings()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		synth:        synth,
		recog:        recog,
		clock:        clock,
		timings:      timings,
		log:          logger,
		callbacks:    opts.Callbacks,
		conversation: NewLog(clock),
		stage:        StageGreeting,
		owner:        SpeakerAI,
		spoken:       make(map[string]struct{}),
		micEnabled:   true,
		timers:       make(map[timerSlot]Timer),
	}
}

// LoadContent feeds the generator's raw blob into the engine, extracting the
// prompt sequence and queueing the greeting. Duplicate deliveries are
// ignored.
func (e *Engine) LoadContent(blob string) {
	e.mu.Lock()
	if e.closed || e.contentLoaded {
		e.mu.Unlock()
		e.log.Debug("duplicate content delivery ignored")
		return
	}
	e.contentLoaded = true
	e.prompts = ExtractPrompts(blob)
	e.stage = StageGreeting
	e.questionIndex = 0
	acts := e.notifyStageLocked()
	e.queue.enqueue(Greeting, StageGreeting)
	acts = append(acts, e.processQueueLocked()...)
	e.mu.Unlock()
	run(acts)
}

// Close tears the session down: every pending timer is cancelled, the
// in-flight utterance is cancelled and any listening session aborted. It is
// safe on every exit path and idempotent; events arriving afterwards are
// no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for slot, t := range e.timers {
		t.Stop()
		delete(e.timers, slot)
	}
	e.queue.clear()
	e.busy = false
	e.allowUser = false
	e.listening = false
	e.mu.Unlock()

	e.synth.Cancel()
	e.recog.Abort()
	e.log.Debug("engine closed")
}

// Conversation exposes the canonical log for the analysis collaborator and
// the export facility.
func (e *Engine) Conversation() *Log { return e.conversation }

// Owner reports which party currently holds the turn.
func (e *Engine) Owner() Speaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// Stage reports the current dialogue phase.
func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage
}

// QuestionIndex reports the position in the prompt sequence.
func (e *Engine) QuestionIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.questionIndex
}

// AllowUserResponse reports whether a user answer would be accepted now.
func (e *Engine) AllowUserResponse() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allowUser
}

// Speaking reports whether the synthesizer is mid-utterance.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.synthActive
}

// Listening reports whether a recognition session is active.
func (e *Engine) Listening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listening
}

// Terminal reports whether the conclusion has completed.
func (e *Engine) Terminal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal
}

// schedule places fn in a slot, replacing any pending timer there. fn runs
// under the engine lock and returns the effects to run after release.
func (e *Engine) schedule(slot timerSlot, d time.Duration, fn func() []func()) {
	if t, ok := e.timers[slot]; ok {
		t.Stop()
	}
	e.timers[slot] = e.clock.AfterFunc(d, func() {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		delete(e.timers, slot)
		acts := fn()
		e.mu.Unlock()
		run(acts)
	})
}

func (e *Engine) cancelTimer(slot timerSlot) {
	if t, ok := e.timers[slot]; ok {
		t.Stop()
		delete(e.timers, slot)
	}
}

// processQueueLocked pops and dispatches the next job when the queue is
// non-empty, nothing is in flight, and the output channel is idle. Already
// spoken text skips synthesis and runs the stage continuation directly.
func (e *Engine) processQueueLocked() []func() {
	if e.closed || e.terminal || e.busy || e.synthActive || e.queue.len() == 0 {
		return nil
	}
	job, _ := e.queue.pop()
	if _, seen := e.spoken[job.text]; seen {
		e.log.Debug("text already spoken, skipping dispatch", zap.String("stage", string(job.stage)))
		return e.afterUtteranceLocked(job.stage)
	}
	e.busy = true
	e.schedule(slotPreSpeak, e.timings.PreSpeakDelay, func() []func() {
		return e.dispatchLocked(job)
	})
	return nil
}

// dispatchLocked hands the job to the synthesizer. The text joins the spoken
// set here, before completion, so a racing enqueue during the settle delay
// cannot produce a second dispatch.
func (e *Engine) dispatchLocked(job utteranceJob) []func() {
	e.spoken[job.text] = struct{}{}
	e.current = job
	e.owner = SpeakerAI
	e.allowUser = false
	e.conversation.Append(SpeakerAI, job.text, entryTypeFor(job.stage))

	var acts []func()
	if e.listening {
		e.listening = false
		acts = append(acts, e.recog.Stop)
	}
	if cb := e.callbacks.OnCaption; cb != nil {
		text := job.text
		acts = append(acts, func() { cb(text) })
	}
	cbset := UtteranceCallbacks{
		OnStart:    func() { e.handleUtteranceStart() },
		OnEnd:      func() { e.handleUtteranceEnd(job) },
		OnError:    func(err error) { e.handleUtteranceError(job, err) },
		OnBoundary: func(upTo int) { e.handleBoundary(job.text, upTo) },
	}
	acts = append(acts, func() { e.synth.Speak(job.text, cbset) })
	e.log.Info("dispatching utterance",
		zap.String("stage", string(job.stage)),
		zap.Int("question_index", e.questionIndex))
	return acts
}

func (e *Engine) handleUtteranceStart() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.synthActive = true
	e.owner = SpeakerAI
	e.allowUser = false
	e.cancelTimer(slotEnableListen)
	e.cancelTimer(slotListenStart)
	e.cancelTimer(slotListenRestart)
	e.cancelTimer(slotNetworkRetry)
	var acts []func()
	if e.listening {
		e.listening = false
		acts = append(acts, e.recog.Stop)
	}
	e.mu.Unlock()
	run(acts)
}

func (e *Engine) handleUtteranceEnd(job utteranceJob) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.synthActive = false
	e.busy = false
	acts := e.afterUtteranceLocked(job.stage)
	acts = append(acts, e.processQueueLocked()...)
	e.mu.Unlock()
	run(acts)
}

func (e *Engine) handleUtteranceError(job utteranceJob, err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.synthActive = false
	e.busy = false
	e.log.Warn("synthesis error", zap.String("stage", string(job.stage)), zap.Error(err))
	var acts []func()
	// A failed question must still release the turn rather than stall the
	// conversation.
	if job.stage == StageQuestion || job.stage == StageFollowup {
		e.owner = SpeakerUser
		e.allowUser = true
		acts = append(acts, e.evaluateListenLocked()...)
	}
	acts = append(acts, e.processQueueLocked()...)
	e.mu.Unlock()
	run(acts)
}

func (e *Engine) handleBoundary(text string, upTo int) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	cb := e.callbacks.OnCaption
	e.mu.Unlock()
	if cb == nil {
		return
	}
	if upTo < 0 {
		upTo = 0
	}
	if upTo > len(text) {
		upTo = len(text)
	}
	cb(text[:upTo] + "...")
}

// afterUtteranceLocked advances the machine once an utterance has completed,
// or when a spoken-set skip stands in for a completion.
func (e *Engine) afterUtteranceLocked(stage Stage) []func() {
	switch stage {
	case StageGreeting:
		e.schedule(slotAdvance, e.timings.FirstPromptDelay, e.firstQuestionLocked)
	case StageQuestion, StageFollowup:
		e.schedule(slotEnableListen, e.timings.EnableListenDelay, func() []func() {
			if e.stage != StageQuestion && e.stage != StageFollowup {
				return nil
			}
			e.owner = SpeakerUser
			e.allowUser = true
			return e.evaluateListenLocked()
		})
	case StageConclusion:
		if e.terminal {
			return nil
		}
		e.terminal = true
		e.log.Info("interview concluded", zap.Int("turns", e.conversation.Len()))
		if cb := e.callbacks.OnConcluded; cb != nil {
			return []func(){cb}
		}
	}
	return nil
}

// firstQuestionLocked moves from the greeting to the first real question, or
// straight to the conclusion when extraction produced no questions.
func (e *Engine) firstQuestionLocked() []func() {
	if len(e.prompts) > 1 {
		e.questionIndex = 1
		e.stage = StageQuestion
		acts := e.notifyStageLocked()
		e.queue.enqueue(e.prompts[1].Text, StageQuestion)
		return append(acts, e.processQueueLocked()...)
	}
	e.stage = StageConclusion
	acts := e.notifyStageLocked()
	e.queue.enqueue(Conclusion, StageConclusion)
	return append(acts, e.processQueueLocked()...)
}

// advanceLocked moves to the next prompt after a recorded answer. Ignored
// unless the user holds the turn and the output channel is idle, which
// suppresses duplicate advancement from overlapping recognition-end and
// explicit-done events.
func (e *Engine) advanceLocked() []func() {
	if e.owner != SpeakerUser || e.synthActive {
		e.log.Debug("advance ignored",
			zap.String("owner", string(e.owner)),
			zap.Bool("speaking", e.synthActive))
		return nil
	}
	e.owner = SpeakerAI
	e.allowUser = false

	next := e.questionIndex + 1
	if next < len(e.prompts) {
		e.questionIndex = next
		e.stage = StageQuestion
		acts := e.notifyStageLocked()
		e.queue.enqueue(e.prompts[next].Text, StageQuestion)
		return append(acts, e.processQueueLocked()...)
	}
	e.stage = StageConclusion
	acts := e.notifyStageLocked()
	e.queue.enqueue(Conclusion, StageConclusion)
	return append(acts, e.processQueueLocked()...)
}

func (e *Engine) notifyStageLocked() []func() {
	cb := e.callbacks.OnStageChange
	if cb == nil {
		return nil
	}
	stage, idx := e.stage, e.questionIndex
	return []func(){func() { cb(stage, idx) }}
}

func entryTypeFor(stage Stage) EntryType {
	switch stage {
	case StageGreeting:
		return EntryGreeting
	case StageConclusion:
		return EntryConclusion
	default:
		return EntryQuestion
	}
}

func run(acts []func()) {
	for _, fn := range acts {
		if fn != nil {
			fn()
		}
	}
}

package interview

import "go.uber.org/zap"

// noResponseText is recorded when the user signals done without a transcript.
const noResponseText = "No response"

// HandleInterimResult updates the live caption with a partial transcript. It
// never mutates turn state.
func (e *Engine) HandleInterimResult(text string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.liveText = text
	var acts []func()
	if !e.userSpeaking {
		e.userSpeaking = true
		if cb := e.callbacks.OnPresentationPause; cb != nil {
			acts = append(acts, cb)
		}
	}
	if cb := e.callbacks.OnCaption; cb != nil {
		acts = append(acts, func() { cb(text) })
	}
	e.mu.Unlock()
	run(acts)
}

// HandleFinalResult records a finalized transcript as the user's answer and
// schedules advancement. Ignored outside an open user turn.
func (e *Engine) HandleFinalResult(text string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	acts := e.acceptAnswerLocked(text)
	e.mu.Unlock()
	run(acts)
}

// Done is the explicit user signal that the answer is complete. The live
// transcript so far is recorded, or a placeholder when nothing was heard.
func (e *Engine) Done() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	text := e.liveText
	if text == "" {
		text = noResponseText
	}
	acts := e.acceptAnswerLocked(text)
	e.mu.Unlock()
	run(acts)
}

func (e *Engine) acceptAnswerLocked(text string) []func() {
	if e.owner != SpeakerUser || !e.allowUser {
		return nil
	}
	e.conversation.Append(SpeakerUser, text, EntryAnswer)
	e.allowUser = false
	e.listening = false
	e.userSpeaking = false
	e.liveText = ""
	e.cancelTimer(slotListenStart)
	e.cancelTimer(slotListenRestart)
	e.cancelTimer(slotNetworkRetry)
	e.schedule(slotAdvance, e.timings.AdvanceDelay, e.advanceLocked)
	e.log.Info("answer recorded", zap.Int("question_index", e.questionIndex))

	acts := []func(){e.recog.Stop}
	if cb := e.callbacks.OnCaption; cb != nil {
		acts = append(acts, func() { cb(text) })
	}
	return acts
}

// HandleListenStarted marks the recognition session active.
func (e *Engine) HandleListenStarted() {
	e.mu.Lock()
	if !e.closed {
		e.listening = true
	}
	e.mu.Unlock()
}

// HandleListenEnded clears the listening flag when the device ends the
// session and resumes any paused presentation if the AI is mid-utterance.
func (e *Engine) HandleListenEnded() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.listening = false
	e.userSpeaking = false
	var acts []func()
	if e.synthActive {
		if cb := e.callbacks.OnPresentationResume; cb != nil {
			acts = append(acts, cb)
		}
	}
	acts = append(acts, e.evaluateListenLocked()...)
	e.mu.Unlock()
	run(acts)
}

// HandleListenError applies the recognition error policy: no-speech is
// ignored, aborted is the expected outcome of a manual stop, network gets one
// delayed restart, anything else releases the turn if one was expected.
func (e *Engine) HandleListenError(kind RecogErrorKind) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	var acts []func()
	switch kind {
	case RecogErrNoSpeech:
		// Keep listening.
		e.log.Debug("no speech detected, session continues")
	case RecogErrAborted:
		e.listening = false
	case RecogErrNetwork:
		e.listening = false
		if e.owner == SpeakerUser && e.allowUser && e.micEnabled {
			e.log.Warn("recognition network error, scheduling restart")
			e.schedule(slotNetworkRetry, e.timings.NetworkRetryDelay, func() []func() {
				if e.owner != SpeakerUser || !e.allowUser || !e.micEnabled {
					return nil
				}
				return []func(){e.startRecognizer}
			})
		}
	default:
		e.listening = false
		e.log.Warn("recognition error", zap.String("kind", string(kind)))
		if e.stage == StageQuestion || e.stage == StageFollowup {
			// Keep the turn open rather than stalling the conversation.
			e.owner = SpeakerUser
			e.allowUser = true
			acts = append(acts, e.evaluateListenLocked()...)
		}
	}
	e.userSpeaking = false
	if e.synthActive {
		if cb := e.callbacks.OnPresentationResume; cb != nil {
			acts = append(acts, cb)
		}
	}
	e.mu.Unlock()
	run(acts)
}

// SetMicEnabled toggles the input device. Disabling it force-stops any active
// listening session immediately.
func (e *Engine) SetMicEnabled(on bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.micEnabled = on
	var acts []func()
	if !on {
		e.cancelTimer(slotListenStart)
		e.cancelTimer(slotListenRestart)
		e.cancelTimer(slotNetworkRetry)
		if e.listening {
			e.listening = false
			acts = append(acts, e.recog.Stop)
		}
	} else {
		acts = e.evaluateListenLocked()
	}
	e.mu.Unlock()
	run(acts)
}

// evaluateListenLocked schedules the recognizer start sequence when every
// gate holds: user's turn, response allowed, not already listening, mic
// enabled, AI not speaking. The start itself aborts any stale session and
// re-checks the gates at each step.
func (e *Engine) evaluateListenLocked() []func() {
	if !e.canListenLocked() {
		return nil
	}
	e.schedule(slotListenStart, e.timings.ListenStartDelay, func() []func() {
		if !e.canListenLocked() {
			return nil
		}
		e.schedule(slotListenRestart, e.timings.RestartDelay, func() []func() {
			if !e.canListenLocked() {
				return nil
			}
			return []func(){e.startRecognizer}
		})
		return []func(){e.recog.Abort}
	})
	return nil
}

func (e *Engine) canListenLocked() bool {
	if _, retryPending := e.timers[slotNetworkRetry]; retryPending {
		return false
	}
	return !e.closed && !e.terminal &&
		e.owner == SpeakerUser && e.allowUser &&
		!e.listening && e.micEnabled && !e.synthActive
}

// startRecognizer runs outside the lock. A start error usually means the
// session is already active with stale local state, so the flag is synced to
// match.
func (e *Engine) startRecognizer() {
	if err := e.recog.Start(); err != nil {
		e.log.Warn("recognizer start failed, assuming active session", zap.Error(err))
		e.HandleListenStarted()
	}
}

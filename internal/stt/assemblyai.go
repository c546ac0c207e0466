package stt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/resumekit/interview-agent/internal/interview"
)

// SILENCE_THRESHOLD is the base inactivity window required before an
// utterance is considered complete. Keep conservative to avoid cutting the
// user mid-sentence.
const SILENCE_THRESHOLD = 700 * time.Millisecond

// CONTINUATION_EXTENSION is added to the silence threshold when the last word
// suggests the user is likely to continue the sentence (e.g., "and", "or",
// "if").
const CONTINUATION_EXTENSION = 1200 * time.Millisecond

// STABILIZATION_GRACE waits a little after crossing the silence threshold to
// absorb any late transcript updates from the ASR before finalizing.
const STABILIZATION_GRACE = 250 * time.Millisecond

// Events surface recognition activity to the session. All fields are
// optional; they are invoked from the service's goroutines.
type Events struct {
	// OnResult delivers transcript text. final=false is the rolling interim
	// transcript; final=true is the committed end-of-utterance delta.
	OnResult func(text string, final bool)
	// OnStart fires once the streaming session is established.
	OnStart func()
	// OnEnd fires when the session closes, on every path.
	OnEnd func()
	// OnError reports a classified recognition failure.
	OnError func(kind interview.RecogErrorKind)
}

// AssemblyAIService is one restartable streaming recognition session against
// the AssemblyAI v3 realtime API. It implements interview.Recognizer.
type AssemblyAIService struct {
	apiKey string
	events Events
	log    *zap.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	audioData chan []byte
	stopCh    chan struct{}

	// utterance accumulation
	accMu                   sync.Mutex
	latestFullTranscript    string
	committedFullTranscript string
	lastUpdateTime          time.Time
	// resettable timer detecting end-of-utterance from inactivity
	silenceTimer *time.Timer
	// last time voice energy was seen in the incoming PCM
	lastVoiceTime time.Time
}

type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type          string `json:"type"`
	Transcript    string `json:"transcript"`
	TurnFormatted bool   `json:"turn_is_formatted"`
}

type terminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// New creates a recognition service delivering events to the given sinks.
func New(apiKey string, events Events, log *zap.Logger) *AssemblyAIService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AssemblyAIService{apiKey: apiKey, events: events, log: log}
}

// Start establishes the streaming websocket and begins a listening session.
// The service may be started again after Stop or Abort.
func (s *AssemblyAIService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("assemblyai: session already active")
	}
	if s.apiKey == "" {
		return fmt.Errorf("assemblyai: API key is empty")
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")

	wsURL := fmt.Sprintf("wss://streaming.assemblyai.com/v3/ws?%s", params.Encode())
	headers := map[string][]string{"Authorization": {s.apiKey}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil {
			s.log.Warn("assemblyai connection failed", zap.Int("status", resp.StatusCode))
		}
		return fmt.Errorf("assemblyai: connect: %w", err)
	}

	s.conn = conn
	s.connected = true
	s.audioData = make(chan []byte, 1000)
	s.stopCh = make(chan struct{})

	s.accMu.Lock()
	s.latestFullTranscript = ""
	s.committedFullTranscript = ""
	s.lastUpdateTime = time.Now()
	s.lastVoiceTime = time.Now()
	s.accMu.Unlock()

	go s.handleMessages(s.stopCh)
	go s.sendAudioData(s.stopCh, s.audioData)

	s.log.Info("assemblyai streaming session started")
	if s.events.OnStart != nil {
		go s.events.OnStart()
	}
	return nil
}

// Stop ends the session gracefully: any uncommitted transcript delta is
// flushed as a final result before the connection closes.
func (s *AssemblyAIService) Stop() { s.shutdown(true) }

// Abort ends the session discarding any uncommitted transcript.
func (s *AssemblyAIService) Abort() { s.shutdown(false) }

func (s *AssemblyAIService) shutdown(flush bool) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	if s.conn != nil {
		terminateMsg := map[string]string{"type": "Terminate"}
		_ = s.conn.WriteJSON(terminateMsg)
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	s.mu.Unlock()

	s.accMu.Lock()
	if s.silenceTimer != nil {
		_ = s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
	s.accMu.Unlock()

	if flush {
		s.flushPendingDelta()
	}
	s.log.Info("assemblyai session closed", zap.Bool("flushed", flush))
	if s.events.OnEnd != nil {
		s.events.OnEnd()
	}
}

// SendAudio queues 16k little-endian PCM for transcription.
func (s *AssemblyAIService) SendAudio(pcm []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("assemblyai: not connected")
	}
	s.detectVoiceActivity(pcm)
	select {
	case s.audioData <- pcm:
		return nil
	default:
		s.log.Debug("audio buffer full, dropping packet")
		return nil
	}
}

// detectVoiceActivity updates lastVoiceTime if the PCM buffer contains voice
// energy above a threshold. Expects 16-bit little-endian PCM mono at 16 kHz.
func (s *AssemblyAIService) detectVoiceActivity(pcm []byte) {
	const minSamples = 160 // 10ms at 16kHz
	if len(pcm) < minSamples*2 {
		return
	}
	step := 2
	if len(pcm) > 3200 { // bigger chunk, sample sparsely
		step = 4
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return
	}
	rms := math.Sqrt(sumSquares / float64(count))
	const voiceRMS = 250.0
	if rms >= voiceRMS {
		s.accMu.Lock()
		s.lastVoiceTime = time.Now()
		s.accMu.Unlock()
	}
}

func (s *AssemblyAIService) handleMessages(stopCh chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("recovered from panic in handleMessages", zap.Any("panic", r))
		}
	}()
	for {
		select {
		case <-stopCh:
			return
		default:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			_, message, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-stopCh:
					// expected close
				default:
					s.log.Warn("assemblyai read error", zap.Error(err))
					s.emitError(ClassifyError(err))
				}
				return
			}
			s.processMessage(message)
		}
	}
}

func (s *AssemblyAIService) processMessage(message []byte) {
	var baseMsg map[string]interface{}
	if err := json.Unmarshal(message, &baseMsg); err != nil {
		s.log.Warn("assemblyai message unmarshal failed", zap.Error(err))
		return
	}
	msgType, ok := baseMsg["type"].(string)
	if !ok {
		return
	}
	switch msgType {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		s.log.Info("assemblyai session began",
			zap.String("id", msg.ID),
			zap.String("expires_at", time.Unix(msg.ExpiresAt, 0).Format(time.RFC3339)))
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		if msg.Transcript == "" {
			return
		}
		if s.events.OnResult != nil {
			s.events.OnResult(msg.Transcript, false)
		}
		s.accMu.Lock()
		s.latestFullTranscript = msg.Transcript
		s.lastUpdateTime = time.Now()
		// reset or start the silence timer; the finalize fires only after
		// inactivity
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(SILENCE_THRESHOLD, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(SILENCE_THRESHOLD)
		}
		s.accMu.Unlock()
	case "Termination":
		var msg terminationMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		s.log.Info("assemblyai session terminated",
			zap.Float64("audio_seconds", msg.AudioDurationSeconds),
			zap.Float64("session_seconds", msg.SessionDurationSeconds))
		s.flushPendingDelta()
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		s.log.Warn("assemblyai error", zap.String("error", msg.Error))
		s.emitError(ClassifyMessage(msg.Error))
	default:
		s.log.Debug("unknown assemblyai message type", zap.String("type", msgType))
	}
}

// finalizeDueToSilence is invoked after SILENCE_THRESHOLD of inactivity. It
// emits only the delta since the last committed transcript, if significant.
func (s *AssemblyAIService) finalizeDueToSilence() {
	s.mu.RLock()
	stopCh := s.stopCh
	s.mu.RUnlock()
	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
		return
	default:
	}

	s.accMu.Lock()
	now := time.Now()
	// Extend the threshold for continuation-like endings.
	threshold := SILENCE_THRESHOLD
	if isContinuationLikely(s.latestFullTranscript) {
		threshold += CONTINUATION_EXTENSION
	}
	sinceText := now.Sub(s.lastUpdateTime)
	sinceVoice := now.Sub(s.lastVoiceTime)
	if sinceText < threshold || sinceVoice < threshold {
		// Not enough inactivity; reschedule for the remaining window.
		wait := threshold
		if rem := threshold - sinceText; sinceText < threshold && rem < wait {
			wait = rem
		}
		if rem := threshold - sinceVoice; sinceVoice < threshold && rem < wait {
			wait = rem
		}
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(wait, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(wait)
		}
		s.accMu.Unlock()
		return
	}

	lastUpdateAt := s.lastUpdateTime
	s.accMu.Unlock()

	// Grace period to catch late transcript updates.
	time.Sleep(STABILIZATION_GRACE)

	s.accMu.Lock()
	now2 := time.Now()
	threshold2 := SILENCE_THRESHOLD
	if isContinuationLikely(s.latestFullTranscript) {
		threshold2 += CONTINUATION_EXTENSION
	}
	if s.lastUpdateTime.After(lastUpdateAt) {
		// A late update arrived during grace; push the timer forward.
		wait := threshold2
		if rem := threshold2 - now2.Sub(s.lastUpdateTime); rem > 10*time.Millisecond && rem < wait {
			wait = rem
		}
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(wait, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(wait)
		}
		s.accMu.Unlock()
		return
	}

	delta := s.commitDeltaLocked()
	s.accMu.Unlock()

	if delta == "" {
		return
	}
	select {
	case <-stopCh:
	default:
		if s.events.OnResult != nil {
			s.events.OnResult(delta, true)
		}
	}
}

// commitDeltaLocked computes the uncommitted suffix of the transcript and
// marks it committed. Caller holds accMu.
func (s *AssemblyAIService) commitDeltaLocked() string {
	latest := s.latestFullTranscript
	base := s.committedFullTranscript
	delta := strings.TrimSpace(strings.TrimPrefix(latest, base))
	if delta == "" && base != "" {
		if idx := strings.LastIndex(latest, base); idx >= 0 && idx+len(base) <= len(latest) {
			delta = strings.TrimSpace(latest[idx+len(base):])
		}
	}
	s.committedFullTranscript = latest
	return delta
}

// flushPendingDelta emits any remaining uncommitted transcript so the last
// words are not lost.
func (s *AssemblyAIService) flushPendingDelta() {
	s.accMu.Lock()
	delta := s.commitDeltaLocked()
	s.accMu.Unlock()
	if delta == "" {
		return
	}
	if s.events.OnResult != nil {
		s.events.OnResult(delta, true)
	}
}

func (s *AssemblyAIService) emitError(kind interview.RecogErrorKind) {
	if s.events.OnError != nil {
		s.events.OnError(kind)
	}
}

func (s *AssemblyAIService) sendAudioData(stopCh chan struct{}, audioData chan []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("recovered from panic in sendAudioData", zap.Any("panic", r))
		}
	}()
	for {
		select {
		case <-stopCh:
			return
		case pcm, ok := <-audioData:
			if !ok {
				return
			}
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn != nil {
				if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
					s.log.Warn("assemblyai audio write failed", zap.Error(err))
					return
				}
			}
		}
	}
}

// ClassifyError maps a transport error to the engine's error taxonomy.
func ClassifyError(err error) interview.RecogErrorKind {
	if err == nil {
		return interview.RecogErrOther
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage maps an error string to the engine's error taxonomy.
func ClassifyMessage(msg string) interview.RecogErrorKind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "no speech") || strings.Contains(m, "no audio"):
		return interview.RecogErrNoSpeech
	case strings.Contains(m, "abort"):
		return interview.RecogErrAborted
	case strings.Contains(m, "connect") || strings.Contains(m, "network") ||
		strings.Contains(m, "timeout") || strings.Contains(m, "eof") ||
		strings.Contains(m, "closed"):
		return interview.RecogErrNetwork
	default:
		return interview.RecogErrOther
	}
}

// isContinuationLikely reports whether the last meaningful word indicates the
// speaker is likely to continue (conjunctions, prepositions, fillers).
func isContinuationLikely(text string) bool {
	w := lastWord(text)
	if w == "" {
		return false
	}
	_, ok := continuationWords[w]
	return ok
}

func lastWord(text string) string {
	trim := strings.TrimSpace(text)
	if trim == "" {
		return ""
	}
	fields := strings.FieldsFunc(trim, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

var continuationWords = map[string]struct{}{
	// Coordinating conjunctions
	"and": {}, "or": {}, "but": {}, "nor": {}, "yet": {}, "so": {},
	// Subordinating conjunctions / conditionals
	"if": {}, "when": {}, "while": {}, "though": {}, "although": {},
	"because": {}, "since": {}, "unless": {}, "until": {}, "whereas": {},
	// Discourse markers / fillers
	"also": {}, "plus": {}, "um": {}, "uh": {}, "like": {},
	// Prepositions that are awkward sentence endings
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "on": {}, "in": {}, "at": {},
}

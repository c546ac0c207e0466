package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/resumekit/interview-agent/internal/analysis"
	"github.com/resumekit/interview-agent/internal/interview"
	"github.com/resumekit/interview-agent/internal/logger"
	"github.com/resumekit/interview-agent/internal/stt"
	"github.com/resumekit/interview-agent/internal/tts"
)

// sessionMessage is a client-to-server control frame. Binary frames carry
// 16k little-endian microphone PCM instead.
// Types: "start", "done", "mic", "bye".
type sessionMessage struct {
	Type string `json:"type"`
	// start
	Resume string `json:"resume,omitempty"`
	// mic
	Enabled *bool `json:"enabled,omitempty"`
}

// sessionEvent is a server-to-client frame. Synthesized audio goes out as
// binary 48k linear16 PCM alongside these.
// Types: "ready", "caption", "stage", "listening", "pause", "resume",
// "concluded", "analysis", "error".
type sessionEvent struct {
	Type          string           `json:"type"`
	SessionID     string           `json:"sessionId,omitempty"`
	Text          string           `json:"text,omitempty"`
	Stage         string           `json:"stage,omitempty"`
	QuestionIndex int              `json:"questionIndex,omitempty"`
	Listening     bool             `json:"listening,omitempty"`
	Analysis      *analysis.Result `json:"analysis,omitempty"`
	Cached        bool             `json:"cached,omitempty"`
	Error         string           `json:"error,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// session owns one live interview over a websocket: the engine, its speech
// channels, and the connection they share.
type session struct {
	id     string
	conn   *websocket.Conn
	log    *zap.Logger
	server *Server

	writeMu sync.Mutex

	engine *interview.Engine
	recog  *stt.AssemblyAIService
	synth  *tts.DeepgramClient
}

// handleSession upgrades to a websocket and runs the interview loop until
// the client disconnects or says bye.
func (s *Server) handleSession(c echo.Context) error {
	if !authOK(c.Request(), s.cfg.AuthPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return nil
	}

	id := uuid.NewString()
	sess := &session{
		id:     id,
		conn:   conn,
		log:    s.log.With(zap.String("session_id", id)),
		server: s,
	}
	sess.run()
	return nil
}

func (se *session) run() {
	defer func() { _ = se.conn.Close() }()

	se.synth = tts.NewDeepgramClient(se.server.cfg.DeepgramAPIKey, se.server.cfg.DeepgramTTSModel, se, se.log)
	se.recog = stt.New(se.server.cfg.AssemblyAIKey, stt.Events{
		OnResult: func(text string, final bool) {
			if final {
				se.engine.HandleFinalResult(text)
			} else {
				se.engine.HandleInterimResult(text)
			}
		},
		OnStart: func() {
			se.engine.HandleListenStarted()
			se.sendEvent(sessionEvent{Type: "listening", Listening: true})
		},
		OnEnd: func() {
			se.engine.HandleListenEnded()
			se.sendEvent(sessionEvent{Type: "listening", Listening: false})
		},
		OnError: func(kind interview.RecogErrorKind) {
			se.engine.HandleListenError(kind)
		},
	}, se.log)

	se.engine = interview.New(se.synth, se.recog, interview.Options{
		Logger: se.log,
		Callbacks: interview.Callbacks{
			OnCaption: func(text string) {
				se.sendEvent(sessionEvent{Type: "caption", Text: text})
			},
			OnStageChange: func(stage interview.Stage, questionIndex int) {
				se.sendEvent(sessionEvent{Type: "stage", Stage: string(stage), QuestionIndex: questionIndex})
			},
			OnPresentationPause: func() {
				se.sendEvent(sessionEvent{Type: "pause"})
			},
			OnPresentationResume: func() {
				se.sendEvent(sessionEvent{Type: "resume"})
			},
			OnConcluded: func() {
				se.sendEvent(sessionEvent{Type: "concluded"})
				go se.finish()
			},
		},
	})
	defer se.teardown()

	se.sendEvent(sessionEvent{Type: "ready", SessionID: se.id})
	se.log.Info("interview session started")

	for {
		mt, data, err := se.conn.ReadMessage()
		if err != nil {
			se.log.Info("session read ended", zap.Error(err))
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			if err := se.recog.SendAudio(data); err != nil {
				se.log.Debug("audio frame dropped", zap.Error(err))
			}
		case websocket.TextMessage:
			if done := se.handleControl(data); done {
				return
			}
		}
	}
}

func (se *session) handleControl(data []byte) bool {
	var msg sessionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		se.sendEvent(sessionEvent{Type: "error", Error: "invalid control frame"})
		return false
	}
	switch strings.ToLower(msg.Type) {
	case "start":
		go se.start(msg.Resume)
	case "done":
		se.engine.Done()
	case "mic":
		if msg.Enabled != nil {
			se.engine.SetMicEnabled(*msg.Enabled)
		}
	case "bye":
		return true
	default:
		se.sendEvent(sessionEvent{Type: "error", Error: "unknown control type"})
	}
	return false
}

// start generates the question content and feeds it to the engine. Runs off
// the read loop so generation latency never blocks audio frames.
func (se *session) start(resume string) {
	if se.server.gen == nil {
		se.sendEvent(sessionEvent{Type: "error", Error: "question generation unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	blob, err := se.server.gen.GenerateQuestions(ctx, resume)
	if err != nil {
		se.log.Error("question generation failed", zap.Error(err))
		se.sendEvent(sessionEvent{Type: "error", Error: "question generation failed"})
		return
	}
	se.log.Info("interview content ready", zap.String("preview", logger.Truncate(blob, 80)))
	se.engine.LoadContent(blob)
}

// finish runs the post-interview work: analysis delivery and the transcript
// file.
func (se *session) finish() {
	entries := se.engine.Conversation().Entries()

	if dir := se.server.cfg.TranscriptDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			path := filepath.Join(dir, "interview_"+se.id+".json")
			if err := se.engine.Conversation().WriteFile(path); err != nil {
				se.log.Warn("transcript write failed", zap.Error(err))
			}
		}
	}

	event := sessionEvent{Type: "analysis"}
	if se.server.analyzer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		result, cached, err := se.server.analyzer.Analyze(ctx, entries)
		if err == nil {
			event.Analysis = &result
			event.Cached = cached
			se.sendEvent(event)
			return
		}
		se.log.Warn("analysis failed, serving fallback", zap.Error(err))
	}
	fallback := analysis.Fallback(entries)
	event.Analysis = &fallback
	se.sendEvent(event)
}

func (se *session) teardown() {
	se.engine.Close()
	se.log.Info("interview session closed",
		zap.Int("turns", se.engine.Conversation().Len()))
}

// WritePCM delivers synthesized audio to the client as a binary frame. It
// is the tts.PCMSink for this session.
func (se *session) WritePCM(data []byte) error {
	se.writeMu.Lock()
	defer se.writeMu.Unlock()
	return se.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (se *session) sendEvent(ev sessionEvent) {
	se.writeMu.Lock()
	defer se.writeMu.Unlock()
	if err := se.conn.WriteJSON(ev); err != nil {
		se.log.Debug("event write failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

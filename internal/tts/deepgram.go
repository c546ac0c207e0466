package tts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
	"go.uber.org/zap"

	"github.com/resumekit/interview-agent/internal/interview"
)

// PCMSink receives synthesized linear16 audio frames for delivery to the
// client.
type PCMSink interface {
	WritePCM(data []byte) error
}

// charsPerSecond is the rough speaking rate used to estimate caption
// boundaries from the amount of audio streamed.
const charsPerSecond = 15

// DeepgramClient streams text through the Deepgram speak websocket and feeds
// 48k linear16 PCM to the sink. It implements interview.Synthesizer: one
// utterance at a time, a new Speak cancels the previous one.
type DeepgramClient struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string
	sink       PCMSink
	log        *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDeepgramClient creates a synthesizer writing to sink.
func NewDeepgramClient(apiKey, model string, sink PCMSink, log *zap.Logger) *DeepgramClient {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DeepgramClient{
		apiKey:     apiKey,
		model:      model,
		sampleRate: 48000,
		encoding:   "linear16",
		sink:       sink,
		log:        log,
	}
}

// Speak starts streaming the utterance. Events arrive on cb from the
// streaming goroutine.
func (d *DeepgramClient) Speak(text string, cb interview.UtteranceCallbacks) {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()

	go d.stream(ctx, text, cb)
}

// Cancel stops the in-flight utterance, if any.
func (d *DeepgramClient) Cancel() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
}

func (d *DeepgramClient) stream(ctx context.Context, text string, cb interview.UtteranceCallbacks) {
	fail := func(err error) {
		d.log.Warn("tts stream failed", zap.Error(err))
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}

	if d.apiKey == "" {
		fail(fmt.Errorf("deepgram: API key missing"))
		return
	}
	if text == "" {
		if cb.OnStart != nil {
			cb.OnStart()
		}
		if cb.OnEnd != nil {
			cb.OnEnd()
		}
		return
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   d.encoding,
		SampleRate: d.sampleRate,
	}

	var lastRecvUnix int64
	var seenAudio int32
	var bytesOut int64

	callback := &speakCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
		if atomic.CompareAndSwapInt32(&seenAudio, 0, 1) && cb.OnStart != nil {
			cb.OnStart()
		}
		atomic.AddInt64(&bytesOut, int64(len(data)))
		b := make([]byte, len(data))
		copy(b, data)
		if err := d.sink.WritePCM(b); err != nil {
			d.log.Debug("pcm sink write failed", zap.Error(err))
		}
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, callback)
	if err != nil {
		fail(fmt.Errorf("deepgram: create ws client: %w", err))
		return
	}

	stopped := false
	stopClient := func() {
		if !stopped {
			stopped = true
			dg.Stop()
		}
	}
	defer stopClient()

	if ok := dg.Connect(); !ok {
		fail(fmt.Errorf("deepgram: connect failed"))
		return
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stopClient()
		case <-done:
		}
	}()

	if err := dg.SpeakWithText(text); err != nil {
		fail(fmt.Errorf("deepgram: speak text: %w", err))
		close(done)
		return
	}
	if err := dg.Flush(); err != nil {
		d.log.Warn("deepgram flush error", zap.Error(err))
	}

	finish := func() {
		stopClient()
		close(done)
		if cb.OnEnd != nil {
			cb.OnEnd()
		}
	}

	idleWindow := 400 * time.Millisecond
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(12 * time.Second)
	lastBoundary := 0
	for {
		select {
		case <-ctx.Done():
			stopClient()
			close(done)
			return
		case <-ticker.C:
			if atomic.LoadInt32(&seenAudio) == 1 {
				if cb.OnBoundary != nil {
					if upTo := d.boundaryEstimate(atomic.LoadInt64(&bytesOut), len(text)); upTo > lastBoundary {
						lastBoundary = upTo
						cb.OnBoundary(upTo)
					}
				}
				last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
				if !last.IsZero() && time.Since(last) > idleWindow {
					finish()
					return
				}
			}
			if time.Now().After(deadline) {
				finish()
				return
			}
		}
	}
}

// boundaryEstimate maps streamed audio bytes to an approximate position in
// the text, assuming 16-bit samples and an average speaking rate.
func (d *DeepgramClient) boundaryEstimate(bytes int64, textLen int) int {
	seconds := float64(bytes) / float64(d.sampleRate*2)
	upTo := int(seconds * charsPerSecond)
	if upTo > textLen {
		upTo = textLen
	}
	return upTo
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}

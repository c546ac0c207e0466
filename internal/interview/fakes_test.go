package interview

import "sync"

// fakeSynth records dispatched utterances. In auto mode every Speak completes
// synchronously; otherwise the test drives the callbacks through finish/fail.
type fakeSynth struct {
	mu      sync.Mutex
	auto    bool
	speaks  []string
	cancels int
	cb      UtteranceCallbacks
}

func (f *fakeSynth) Speak(text string, cb UtteranceCallbacks) {
	f.mu.Lock()
	f.speaks = append(f.speaks, text)
	f.cb = cb
	auto := f.auto
	f.mu.Unlock()
	if auto {
		if cb.OnStart != nil {
			cb.OnStart()
		}
		if cb.OnEnd != nil {
			cb.OnEnd()
		}
	}
}

func (f *fakeSynth) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func (f *fakeSynth) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.speaks))
	copy(out, f.speaks)
	return out
}

func (f *fakeSynth) start() {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnStart != nil {
		cb.OnStart()
	}
}

func (f *fakeSynth) finish() {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnEnd != nil {
		cb.OnEnd()
	}
}

func (f *fakeSynth) fail(err error) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func (f *fakeSynth) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// fakeRecog counts session control calls.
type fakeRecog struct {
	mu       sync.Mutex
	starts   int
	stops    int
	aborts   int
	startErr error
}

func (f *fakeRecog) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeRecog) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *fakeRecog) Abort() {
	f.mu.Lock()
	f.aborts++
	f.mu.Unlock()
}

func (f *fakeRecog) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeRecog) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}

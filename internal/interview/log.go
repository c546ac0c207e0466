package interview

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Speaker identifies which party produced a log entry.
type Speaker string

const (
	SpeakerAI   Speaker = "ai"
	SpeakerUser Speaker = "user"
)

// EntryType classifies a log entry by its role in the dialogue.
type EntryType string

const (
	EntryGreeting   EntryType = "greeting"
	EntryQuestion   EntryType = "question"
	EntryAnswer     EntryType = "answer"
	EntryConclusion EntryType = "conclusion"
)

// Entry is one timestamped turn of the conversation.
type Entry struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Type      EntryType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the append-only record of the conversation. It is the canonical
// source for any derived analysis; entries are never edited or removed during
// a session.
type Log struct {
	mu      sync.Mutex
	clock   Clock
	entries []Entry
}

// NewLog creates an empty conversation log stamped by the given clock.
func NewLog(clock Clock) *Log {
	if clock == nil {
		clock = SystemClock()
	}
	return &Log{clock: clock}
}

// Append records a turn with the current timestamp.
func (l *Log) Append(speaker Speaker, text string, typ EntryType) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{
		Speaker:   speaker,
		Text:      text,
		Type:      typ,
		Timestamp: l.clock.Now().UTC(),
	})
	l.mu.Unlock()
}

// Entries returns a snapshot copy for shared readers.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of recorded turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Export writes the log as an indented JSON array.
func (l *Log) Export(w io.Writer) error {
	entries := l.Entries()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// WriteFile exports the log to a transcript file.
func (l *Log) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return l.Export(f)
}

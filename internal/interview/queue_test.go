package interview

import "testing"

func TestOutputQueue_FIFOAndDedupe(t *testing.T) {
	var q outputQueue
	if !q.enqueue("first", StageGreeting) {
		t.Fatalf("enqueue first rejected")
	}
	if !q.enqueue("second", StageQuestion) {
		t.Fatalf("enqueue second rejected")
	}
	if q.enqueue("first", StageQuestion) {
		t.Fatalf("duplicate text accepted while still queued")
	}
	if q.len() != 2 {
		t.Fatalf("len = %d, want 2", q.len())
	}

	job, ok := q.pop()
	if !ok || job.text != "first" || job.stage != StageGreeting {
		t.Fatalf("pop = %+v, %v", job, ok)
	}
	// Once popped the text may be queued again; the spoken set, not the
	// queue, guards against re-synthesis.
	if !q.enqueue("first", StageQuestion) {
		t.Fatalf("re-enqueue after pop rejected")
	}

	q.clear()
	if q.len() != 0 {
		t.Fatalf("len after clear = %d", q.len())
	}
	if _, ok := q.pop(); ok {
		t.Fatalf("pop from empty queue succeeded")
	}
}

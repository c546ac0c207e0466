package interview

// utteranceJob is a unit of text scheduled for synthesis. Created on enqueue,
// destroyed when spoken or skipped.
type utteranceJob struct {
	text  string
	stage Stage
}

// outputQueue holds pending utterance jobs in FIFO order with no duplicate
// text present simultaneously. It is mutated only under the engine lock; all
// stage decisions belong to the state machine.
type outputQueue struct {
	jobs []utteranceJob
}

// enqueue appends a job unless its text is already queued. Reports whether
// the job was added.
func (q *outputQueue) enqueue(text string, stage Stage) bool {
	for _, j := range q.jobs {
		if j.text == text {
			return false
		}
	}
	q.jobs = append(q.jobs, utteranceJob{text: text, stage: stage})
	return true
}

// pop removes and returns the front job.
func (q *outputQueue) pop() (utteranceJob, bool) {
	if len(q.jobs) == 0 {
		return utteranceJob{}, false
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, true
}

func (q *outputQueue) len() int { return len(q.jobs) }

func (q *outputQueue) clear() { q.jobs = nil }

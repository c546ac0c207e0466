package interview

import (
	"regexp"
	"strings"
)

// Stage is the phase of the dialogue.
type Stage string

const (
	StageGreeting   Stage = "greeting"
	StageQuestion   Stage = "question"
	StageFollowup   Stage = "followup"
	StageConclusion Stage = "conclusion"
)

// Greeting is spoken first regardless of what the generator produced.
const Greeting = "Hello! I hope you're doing well today. Let's start with the interview."

// Conclusion closes the interview once the prompt sequence is exhausted.
const Conclusion = "That concludes our interview questions. Thank you for your time!"

// maxQuestions caps the prompt sequence to keep the interview manageable.
const maxQuestions = 5

// Prompt is one utterance of the planned sequence, immutable once extracted.
type Prompt struct {
	Index int
	Text  string
	Stage Stage
}

var (
	numberedPattern      = regexp.MustCompile(`^\d+\.`)
	interrogativePattern = regexp.MustCompile(`(?i)tell me about|describe|explain|how would you|what|why|when|where|who|which`)
)

// ExtractPrompts turns the generator's raw multi-line blob into the ordered
// prompt sequence: the static greeting followed by up to five qualifying
// question lines. The first line of the blob is the generator's own greeting
// and is always discarded, as is any line that does not look like a question.
// The function is pure; callers guard against duplicate invocation.
func ExtractPrompts(blob string) []Prompt {
	prompts := []Prompt{{Index: 0, Text: Greeting, Stage: StageGreeting}}

	var lines []string
	for _, line := range strings.Split(blob, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) <= 1 {
		return prompts
	}

	for _, line := range lines[1:] {
		if !isQuestionLine(line) {
			continue
		}
		prompts = append(prompts, Prompt{Index: len(prompts), Text: line, Stage: StageQuestion})
		if len(prompts) > maxQuestions {
			break
		}
	}
	return prompts
}

func isQuestionLine(line string) bool {
	if numberedPattern.MatchString(line) || strings.Contains(line, "?") {
		return true
	}
	return interrogativePattern.MatchString(line)
}

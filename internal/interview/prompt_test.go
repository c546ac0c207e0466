package interview

import "testing"

func TestExtractPrompts(t *testing.T) {
	blob := "Welcome, let's begin.\n1. Tell me about yourself?\n2. Describe a challenge you solved.\nRandom note"
	prompts := ExtractPrompts(blob)
	if len(prompts) != 3 {
		t.Fatalf("expected greeting plus two questions, got %d: %+v", len(prompts), prompts)
	}
	if prompts[0].Text != Greeting || prompts[0].Stage != StageGreeting {
		t.Fatalf("first prompt must be the static greeting, got %+v", prompts[0])
	}
	if prompts[1].Text != "1. Tell me about yourself?" {
		t.Fatalf("prompts[1] = %q", prompts[1].Text)
	}
	if prompts[2].Text != "2. Describe a challenge you solved." {
		t.Fatalf("prompts[2] = %q", prompts[2].Text)
	}
	for i, p := range prompts {
		if p.Index != i {
			t.Fatalf("prompt %d has index %d", i, p.Index)
		}
	}
}

func TestExtractPrompts_DiscardsGeneratorGreeting(t *testing.T) {
	// The first non-blank line is the generator's own greeting and never
	// becomes a prompt, even when it looks like a question.
	prompts := ExtractPrompts("What a pleasure to meet you?\n1. Why this role?")
	if len(prompts) != 2 {
		t.Fatalf("got %d prompts: %+v", len(prompts), prompts)
	}
	if prompts[1].Text != "1. Why this role?" {
		t.Fatalf("prompts[1] = %q", prompts[1].Text)
	}
}

func TestExtractPrompts_EmptyAndGreetingOnly(t *testing.T) {
	for _, blob := range []string{"", "   \n\n  ", "Hello there.\nJust some filler."} {
		prompts := ExtractPrompts(blob)
		if len(prompts) != 1 || prompts[0].Stage != StageGreeting {
			t.Fatalf("blob %q: expected greeting only, got %+v", blob, prompts)
		}
	}
}

func TestExtractPrompts_CapsQuestionCount(t *testing.T) {
	blob := "Intro.\n1. Q?\n2. Q?\n3. Q?\n4. Q?\n5. Q?\n6. Q?\n7. Q?"
	prompts := ExtractPrompts(blob)
	if len(prompts) != maxQuestions+1 {
		t.Fatalf("expected %d prompts, got %d", maxQuestions+1, len(prompts))
	}
}

func TestIsQuestionLine(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"1. Something numbered", true},
		{"Is this a question?", true},
		{"Tell me about your last project.", true},
		{"Explain your approach to testing.", true},
		{"How would you scale this service", true},
		{"Good luck with the rest of your day.", false},
		{"---", false},
	}
	for _, c := range cases {
		if got := isQuestionLine(c.line); got != c.want {
			t.Errorf("isQuestionLine(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}

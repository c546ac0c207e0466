package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeModelCaller struct {
	lastModel  string
	lastPrompt string
	resp       *genai.GenerateContentResponse
	err        error
}

func (f *fakeModelCaller) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastModel = model
	for _, c := range contents {
		for _, p := range c.Parts {
			if p != nil {
				f.lastPrompt += p.Text
			}
		}
	}
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	gp := make([]*genai.Part, len(parts))
	for i, p := range parts {
		gp[i] = &genai.Part{Text: p}
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: gp},
		}},
	}
}

func TestNewGenerator_RequiresAPIKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), "  ", "", nil); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestGenerateQuestions(t *testing.T) {
	fake := &fakeModelCaller{
		resp: textResponse("Hello Jane!\n1. Tell me about your Go experience?", "2. Why this role?"),
	}
	g := &Generator{models: fake, model: "gemini-2.0-flash", log: zap.NewNop()}

	blob, err := g.GenerateQuestions(context.Background(), "Jane Doe\nGo developer, 5 years.")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := "Hello Jane!\n1. Tell me about your Go experience?\n2. Why this role?"
	if blob != want {
		t.Fatalf("blob = %q, want %q", blob, want)
	}
	if fake.lastModel != "gemini-2.0-flash" {
		t.Fatalf("model = %q", fake.lastModel)
	}
	if !strings.Contains(fake.lastPrompt, "Jane Doe") {
		t.Fatalf("prompt missing resume text: %q", fake.lastPrompt)
	}
	if !strings.Contains(fake.lastPrompt, "15 words") {
		t.Fatalf("prompt missing length constraint")
	}
}

func TestGenerateQuestions_EmptyResume(t *testing.T) {
	g := &Generator{models: &fakeModelCaller{}, model: "m", log: zap.NewNop()}
	if _, err := g.GenerateQuestions(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty resume")
	}
}

func TestGenerateQuestions_APIError(t *testing.T) {
	g := &Generator{models: &fakeModelCaller{err: errors.New("boom")}, model: "m", log: zap.NewNop()}
	if _, err := g.GenerateQuestions(context.Background(), "resume"); err == nil {
		t.Fatal("expected error from api failure")
	}
}

func TestGenerateQuestions_EmptyResponse(t *testing.T) {
	g := &Generator{models: &fakeModelCaller{resp: textResponse("   ")}, model: "m", log: zap.NewNop()}
	if _, err := g.GenerateQuestions(context.Background(), "resume"); err == nil {
		t.Fatal("expected error for empty model output")
	}
}

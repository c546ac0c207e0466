package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const questionsPrompt = `You are preparing a mock interview from the candidate's resume below.
First greet the candidate by name on a line of its own, then list the interview
questions, one per line, numbered "1.", "2." and so on. Questions must relate
to the resume and each question must be at most 15 words. Do not add anything
else. If the text below is not a resume, respond with a single short apology
line and no questions.

Resume:
%s`

// modelCaller is the slice of the genai client the generator calls. The real
// client's Models field satisfies it.
type modelCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator produces the raw interview question blob for a resume. The blob's
// first line is the model's own greeting; the engine discards it and extracts
// the numbered questions.
type Generator struct {
	models modelCaller
	model  string
	log    *zap.Logger
}

// NewGenerator creates a Generator backed by the Gemini API.
func NewGenerator(ctx context.Context, apiKey, model string, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = "gemini-2.0-flash"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{models: client.Models, model: model, log: log}, nil
}

// GenerateQuestions sends the resume to the model and returns the raw
// multi-line blob of greeting plus numbered questions.
func (g *Generator) GenerateQuestions(ctx context.Context, resume string) (string, error) {
	resume = strings.TrimSpace(resume)
	if resume == "" {
		return "", errors.New("resume text must not be empty")
	}

	prompt := fmt.Sprintf(questionsPrompt, resume)
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "text/plain"}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate questions: %w", err)
	}

	blob := joinCandidates(resp)
	if blob == "" {
		return "", errors.New("gemini api returned empty response")
	}
	g.log.Debug("question blob generated", zap.Int("lines", strings.Count(blob, "\n")+1))
	return blob, nil
}

// joinCandidates concatenates all non-empty text parts of the response.
func joinCandidates(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

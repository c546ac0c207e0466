package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/resumekit/interview-agent/internal/interview"
)

const analysisPrompt = `You are an expert interview coach analyzing an interview conversation.
Analyze the following interview conversation and provide feedback in JSON format with the following structure:

{
  "metrics": {
    "overallScore": number (0-100),
    "confidence": number (0-100),
    "technicalScore": number (0-100),
    "communicationScore": number (0-100)
  },
  "keyInsights": [string (list of 5 key observations about the candidate's performance)],
  "improvementAreas": [string (list of 4 specific areas where the candidate can improve)],
  "strengths": [{"title": string, "description": string} (3 total strengths)],
  "focusAreas": [{"title": string, "description": string, "tip": string} (3 total focus areas)],
  "questionResponses": [{"question": string, "response": string, "responseScore": number (0-100), "feedback": string} (one entry per question-answer pair)],
  "nextSteps": [{"title": string, "description": string} (3 total next steps)]
}

Do not include any text outside the JSON structure. Only return the JSON object.
Be fair but constructive in your assessment. Consider both technical accuracy and communication skills.`

// modelCaller is the slice of the genai client the analyzer calls.
type modelCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Analyzer turns a finished conversation into structured feedback. Results
// are cached on disk keyed by a hash of the conversation, so re-analyzing the
// same transcript never hits the model twice.
type Analyzer struct {
	models   modelCaller
	model    string
	cacheDir string
	log      *zap.Logger
}

// NewAnalyzer creates an Analyzer backed by the Gemini API. cacheDir may be
// empty to disable the on-disk cache.
func NewAnalyzer(ctx context.Context, apiKey, model, cacheDir string, log *zap.Logger) (*Analyzer, error) {
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
	return &Analyzer{models: client.Models, model: model, cacheDir: cacheDir, log: log}, nil
}

// Analyze returns the feedback for the conversation, from cache when present.
// The second return reports a cache hit.
func (a *Analyzer) Analyze(ctx context.Context, entries []interview.Entry) (Result, bool, error) {
	if len(entries) == 0 {
		return Result{}, false, errors.New("conversation log is empty")
	}

	formatted := FormatConversation(entries)
	key := cacheKey(formatted)

	if cached, ok := a.readCache(key); ok {
		a.log.Info("analysis served from cache", zap.String("key", key[:12]))
		return cached, true, nil
	}

	prompt := analysisPrompt + "\n\nInterview Conversation:\n" + formatted
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "text/plain"}
	resp, err := a.models.GenerateContent(ctx, a.model, genai.Text(prompt), cfg)
	if err != nil {
		return Result{}, false, fmt.Errorf("analyze conversation: %w", err)
	}

	raw := stripJSONFences(collectText(resp))
	if raw == "" {
		return Result{}, false, errors.New("gemini api returned empty response")
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, false, fmt.Errorf("parse analysis result: %w", err)
	}

	a.writeCache(key, result)
	return result, false, nil
}

// FormatConversation renders the log in the SPEAKER: [type] text form the
// prompt expects.
func FormatConversation(entries []interview.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s: [%s] %s\n\n", strings.ToUpper(string(e.Speaker)), e.Type, e.Text)
	}
	return b.String()
}

// Fallback constructs a local result from the conversation when the model is
// unavailable, pairing each prompt with the first answer that follows it.
func Fallback(entries []interview.Entry) Result {
	result := Result{
		Metrics: Metrics{
			OverallScore:       85,
			Confidence:         78,
			TechnicalScore:     92,
			CommunicationScore: 88,
		},
		KeyInsights: []string{
			"Strong technical knowledge demonstrated",
			"Good problem-solving approach",
			"Could improve eye contact during responses",
			"Excellent articulation of complex concepts",
		},
		ImprovementAreas: []string{
			"Confidence when discussing achievements",
			"Structuring responses more concisely",
			"Technical depth on system design questions",
		},
		Fallback: true,
	}
	for i, e := range entries {
		if e.Type != interview.EntryQuestion && e.Type != interview.EntryGreeting {
			continue
		}
		response := "No response recorded"
		for j := i + 1; j < len(entries) && j <= i+2; j++ {
			if entries[j].Type == interview.EntryAnswer {
				response = entries[j].Text
				break
			}
		}
		result.QuestionResponses = append(result.QuestionResponses, QuestionResponse{
			Question:      e.Text,
			Response:      response,
			ResponseScore: 80,
			Feedback:      "Good response with clear communication",
		})
	}
	return result
}

func cacheKey(formatted string) string {
	sum := sha256.Sum256([]byte(formatted))
	return fmt.Sprintf("%x", sum[:])
}

func (a *Analyzer) cachePath(key string) string {
	return filepath.Join(a.cacheDir, "interview_"+key+".json")
}

func (a *Analyzer) readCache(key string) (Result, bool) {
	if a.cacheDir == "" {
		return Result{}, false
	}
	data, err := os.ReadFile(a.cachePath(key))
	if err != nil {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		a.log.Warn("corrupt analysis cache entry, regenerating", zap.Error(err))
		return Result{}, false
	}
	return result, true
}

func (a *Analyzer) writeCache(key string, result Result) {
	if a.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		a.log.Warn("create analysis cache dir failed", zap.Error(err))
		return
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(a.cachePath(key), data, 0o644); err != nil {
		a.log.Warn("write analysis cache failed", zap.Error(err))
	}
}

// stripJSONFences removes a leading ```json (or ```) fence and the trailing
// fence the model sometimes wraps its output in.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func collectText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

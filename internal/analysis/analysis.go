package analysis

// Result is the structured interview feedback. Field shapes follow the JSON
// contract the model is prompted to produce; decoding is tolerant of missing
// sections.
type Result struct {
	Metrics           Metrics            `json:"metrics"`
	KeyInsights       []string           `json:"keyInsights"`
	ImprovementAreas  []string           `json:"improvementAreas"`
	Strengths         []Strength         `json:"strengths"`
	FocusAreas        []FocusArea        `json:"focusAreas"`
	QuestionResponses []QuestionResponse `json:"questionResponses"`
	NextSteps         []NextStep         `json:"nextSteps"`
	// Fallback marks a result constructed locally after a model failure.
	Fallback bool `json:"fallback,omitempty"`
}

// Metrics are the 0-100 scores.
type Metrics struct {
	OverallScore       int `json:"overallScore"`
	Confidence         int `json:"confidence"`
	TechnicalScore     int `json:"technicalScore"`
	CommunicationScore int `json:"communicationScore"`
}

type Strength struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type FocusArea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tip         string `json:"tip"`
}

// QuestionResponse pairs one question with the recorded answer and its score.
type QuestionResponse struct {
	Question      string `json:"question"`
	Response      string `json:"response"`
	ResponseScore int    `json:"responseScore"`
	Feedback      string `json:"feedback"`
}

type NextStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/WessleyAI/minesafe/engine/domain"
)

// DefaultGenerateModel is the generation model used when none is configured.
const DefaultGenerateModel = "gemini-1.5-flash"

// GenerationConfig mirrors the generationConfig request block.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
}

// DefaultGenerationConfig is near-deterministic with a bounded output budget.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.1,
		MaxOutputTokens: 1024,
		TopK:            40,
		TopP:            0.95,
	}
}

// SafetySetting mirrors one entry of the safetySettings request block.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// DefaultSafetySettings only blocks high-probability content. Hazard reports
// routinely describe injuries and dangerous equipment.
var DefaultSafetySettings = []SafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"},
}

// GenerateClient sends a composed prompt and returns the model's reply.
type GenerateClient struct {
	c      *Client
	model  string
	cfg    GenerationConfig
	safety []SafetySetting
}

// NewGenerateClient creates a generation client on c. A zero cfg uses
// DefaultGenerationConfig; a zero MaxOutputTokens is always bounded.
func NewGenerateClient(c *Client, model string, cfg GenerationConfig) *GenerateClient {
	if model == "" {
		model = DefaultGenerateModel
	}
	def := DefaultGenerationConfig()
	if cfg == (GenerationConfig{}) {
		cfg = def
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = def.MaxOutputTokens
	}
	return &GenerateClient{c: c, model: model, cfg: cfg, safety: DefaultSafetySettings}
}

type generateReq struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
	SafetySettings   []SafetySetting  `json:"safetySettings,omitempty"`
}

type generateResp struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends prompt and returns the first candidate's text with its
// finish reason. A successful reply without candidate content yields an
// empty Text rather than an error. Non-2xx replies return *domain.GenerationError.
func (g *GenerateClient) Generate(ctx context.Context, prompt string) (domain.Generation, error) {
	req := generateReq{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: g.cfg,
		SafetySettings:   g.safety,
	}
	var out generateResp
	if err := g.c.post(ctx, g.model, "generateContent", req, &out); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return domain.Generation{}, &domain.GenerationError{Status: se.code, Message: se.body}
		}
		return domain.Generation{}, &domain.GenerationError{Message: "request", Wrapped: err}
	}

	if len(out.Candidates) == 0 {
		return domain.Generation{FinishReason: out.PromptFeedback.BlockReason}, nil
	}
	cand := out.Candidates[0]
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	return domain.Generation{Text: b.String(), FinishReason: cand.FinishReason}, nil
}

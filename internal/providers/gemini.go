package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

const geminiDefaultModel = "gemini-2.0-flash"

// GeminiProvider implements the Provider interface for Google Gemini
type GeminiProvider struct {
	settings Settings
	logger   *utils.Logger

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiProvider creates the adapter. The SDK client is built on first use.
func NewGeminiProvider(s Settings) *GeminiProvider {
	if s.Model == "" {
		s.Model = geminiDefaultModel
	}
	return &GeminiProvider{
		settings: s,
		logger:   utils.NewLogger("provider.gemini"),
	}
}

// ID returns the model identifier
func (p *GeminiProvider) ID() models.ModelID {
	return models.ModelGemini
}

// IsAvailable reports whether an API key is set and the client was built
func (p *GeminiProvider) IsAvailable() bool {
	return p.ensureClient() == nil
}

func (p *GeminiProvider) ensureClient() error {
	p.once.Do(func() {
		if strings.TrimSpace(p.settings.APIKey) == "" {
			p.initErr = errors.New("google API key not configured")
			return
		}

		cfg := &genai.ClientConfig{
			APIKey:  p.settings.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if p.settings.BaseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.settings.BaseURL}
		}

		client, err := genai.NewClient(context.Background(), cfg)
		if err != nil {
			p.initErr = fmt.Errorf("failed to create Gemini client: %w", err)
			p.logger.Warn("Gemini client construction failed", "error", err)
			return
		}
		p.client = client
		p.logger.Debug("Gemini client initialized", "model", p.settings.Model)
	})
	return p.initErr
}

// GenerateCompletion sends the prompt through GenerateContent
func (p *GeminiProvider) GenerateCompletion(ctx context.Context, prompt string, opts CompletionOptions) (*CompletionResult, error) {
	if err := p.ensureClient(); err != nil {
		return nil, unavailable(p.ID())
	}

	config := &genai.GenerateContentConfig{}
	if opts.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}
	maxTokens := p.settings.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if opts.Temperature != nil {
		t := float32(*opts.Temperature)
		config.Temperature = &t
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.settings.Model, genai.Text(prompt), config)
	elapsed := time.Since(start)
	if err != nil {
		status := geminiStatus(err)
		p.logger.Error("Gemini request failed", "status", status, "error", err)
		return nil, classify(p.ID(), status, err)
	}

	content := geminiText(resp)
	if strings.TrimSpace(content) == "" {
		return nil, emptyResponse(p.ID())
	}

	var input, output, total int64
	if md := resp.UsageMetadata; md != nil {
		input = int64(md.PromptTokenCount)
		output = int64(md.CandidatesTokenCount)
		total = int64(md.TotalTokenCount)
	}
	tokens, estimated := normalizeUsage(input, output, total, content)

	return &CompletionResult{
		Content:         content,
		TokensUsed:      tokens,
		TokensEstimated: estimated,
		ModelIdentifier: p.ID(),
		VendorModel:     p.settings.Model,
		ResponseTimeMS:  int(elapsed.Milliseconds()),
	}, nil
}

// geminiText concatenates the non-thought text parts of every candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}

package providers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

const (
	anthropicDefaultModel     = "claude-3-5-sonnet-latest"
	anthropicDefaultMaxTokens = 1024
)

// Settings holds what an adapter needs to construct its vendor client.
type Settings struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// AnthropicProvider implements the Provider interface for Anthropic Claude
type AnthropicProvider struct {
	settings Settings
	logger   *utils.Logger

	once    sync.Once
	client  *anthropic.Client
	initErr error
}

// NewAnthropicProvider creates the adapter. The SDK client is built on first use.
func NewAnthropicProvider(s Settings) *AnthropicProvider {
	if s.Model == "" {
		s.Model = anthropicDefaultModel
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = anthropicDefaultMaxTokens
	}
	return &AnthropicProvider{
		settings: s,
		logger:   utils.NewLogger("provider.claude"),
	}
}

// ID returns the model identifier
func (p *AnthropicProvider) ID() models.ModelID {
	return models.ModelClaude
}

// IsAvailable reports whether an API key is set and the client was built
func (p *AnthropicProvider) IsAvailable() bool {
	return p.ensureClient() == nil
}

func (p *AnthropicProvider) ensureClient() error {
	p.once.Do(func() {
		if strings.TrimSpace(p.settings.APIKey) == "" {
			p.initErr = errors.New("anthropic API key not configured")
			return
		}

		opts := []option.RequestOption{
			option.WithAPIKey(p.settings.APIKey),
			option.WithMaxRetries(0),
		}
		if p.settings.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(p.settings.BaseURL))
		}

		client := anthropic.NewClient(opts...)
		p.client = &client
		p.logger.Debug("Anthropic client initialized", "model", p.settings.Model)
	})
	return p.initErr
}

// GenerateCompletion sends the prompt through the Messages API
func (p *AnthropicProvider) GenerateCompletion(ctx context.Context, prompt string, opts CompletionOptions) (*CompletionResult, error) {
	if err := p.ensureClient(); err != nil {
		return nil, unavailable(p.ID())
	}

	maxTokens := p.settings.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.settings.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		p.logger.Error("Anthropic request failed", "status", status, "error", err)
		return nil, classify(p.ID(), status, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return nil, emptyResponse(p.ID())
	}

	tokens, estimated := normalizeUsage(msg.Usage.InputTokens, msg.Usage.OutputTokens, 0, content)

	return &CompletionResult{
		Content:         content,
		TokensUsed:      tokens,
		TokensEstimated: estimated,
		ModelIdentifier: p.ID(),
		VendorModel:     p.settings.Model,
		ResponseTimeMS:  int(elapsed.Milliseconds()),
	}, nil
}

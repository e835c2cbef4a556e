package providers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAIProvider implements the Provider interface for OpenAI
type OpenAIProvider struct {
	settings Settings
	logger   *utils.Logger

	once    sync.Once
	client  *openai.Client
	initErr error
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(s Settings) *OpenAIProvider {
	if s.Model == "" {
		s.Model = openAIDefaultModel
	}
	return &OpenAIProvider{
		settings: s,
		logger:   utils.NewLogger("provider.openai"),
	}
}

// ID returns the model identifier
func (p *OpenAIProvider) ID() models.ModelID {
	return models.ModelOpenAI
}

// IsAvailable reports whether an API key is set and the client was built
func (p *OpenAIProvider) IsAvailable() bool {
	return p.ensureClient() == nil
}

func (p *OpenAIProvider) ensureClient() error {
	p.once.Do(func() {
		if strings.TrimSpace(p.settings.APIKey) == "" {
			p.initErr = errors.New("OpenAI API key not configured")
			return
		}

		opts := []option.RequestOption{
			option.WithAPIKey(p.settings.APIKey),
			option.WithMaxRetries(0),
		}
		if p.settings.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(p.settings.BaseURL))
		}

		client := openai.NewClient(opts...)
		p.client = &client
		p.logger.Debug("OpenAI client initialized", "model", p.settings.Model)
	})
	return p.initErr
}

// GenerateCompletion sends the prompt through Chat Completions
func (p *OpenAIProvider) GenerateCompletion(ctx context.Context, prompt string, opts CompletionOptions) (*CompletionResult, error) {
	if err := p.ensureClient(); err != nil {
		return nil, unavailable(p.ID())
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(opts.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.settings.Model),
		Messages: messages,
	}
	maxTokens := p.settings.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}

	start := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		p.logger.Error("OpenAI request failed", "status", status, "error", err)
		return nil, classify(p.ID(), status, err)
	}

	if len(completion.Choices) == 0 {
		return nil, emptyResponse(p.ID())
	}
	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, emptyResponse(p.ID())
	}

	usage := completion.Usage
	tokens, estimated := normalizeUsage(usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, content)

	return &CompletionResult{
		Content:         content,
		TokensUsed:      tokens,
		TokensEstimated: estimated,
		ModelIdentifier: p.ID(),
		VendorModel:     p.settings.Model,
		ResponseTimeMS:  int(elapsed.Milliseconds()),
	}, nil
}

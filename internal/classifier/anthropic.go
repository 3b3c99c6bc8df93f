package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const promptTemplate = `You are a wellness categorization assistant. Categorize the following activity into ONE of these psychological spheres:

Physical - Exercise, sleep, nutrition, health
Emotional - Processing feelings, therapy, self-reflection
Social - Relationships, connections, community
Intellectual - Learning, reading, skill development
Creative - Art, writing, making, expression
Professional - Work, career development, projects
Spiritual - Meditation, meaning, purpose, values

Activity: %q

Respond with ONLY the sphere name (one word: physical, emotional, social, intellectual, creative, professional, or spiritual). No explanation.`

// AnthropicConfig configures the Claude-backed suggester.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
}

// Anthropic suggests spheres through the Messages API.
type Anthropic struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client:  anthropic.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

func buildPrompt(activityName string) string {
	return fmt.Sprintf(promptTemplate, activityName)
}

func (a *Anthropic) SuggestSphere(ctx context.Context, activityName string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 16,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(activityName))),
		},
	}, option.WithMaxRetries(0))
	if err != nil {
		return "", fmt.Errorf("anthropic messages for %q: %w", activityName, err)
	}
	if len(msg.Content) == 0 {
		return "", errors.New("anthropic: empty response")
	}

	return strings.ToLower(strings.TrimSpace(msg.Content[0].Text)), nil
}

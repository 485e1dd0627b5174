package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicMaxTokens is the response cap the Messages API requires.
const anthropicMaxTokens = 1024

type anthropicTransport struct {
	client anthropic.Client
}

func newAnthropicTransport(baseURL, apiKey string, httpClient *http.Client) *anthropicTransport {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &anthropicTransport{client: anthropic.NewClient(opts...)}
}

// anthropicParams lifts system messages into the top-level system field and
// keeps the rest as the conversation.
func anthropicParams(model string, messages []Message) anthropic.MessageNewParams {
	var system []string
	var conversation []anthropic.MessageParam
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	return params
}

func (p *anthropicTransport) send(ctx context.Context, model string, messages []Message) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropicParams(model, messages))
	if err != nil {
		return "", err
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("API returned no text content")
}

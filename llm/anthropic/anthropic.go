// Package anthropic adapts the Anthropic Messages API to the llm.Service
// contract.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mailmind/mailmind-go-sdk/core"
)

// Service implements llm.Service on the Anthropic client.
type Service struct {
	client       *anthropic.Client
	chatModel    string
	summaryModel string
}

// New creates a Service. summaryModel may equal chatModel; a cheaper
// model is usually enough for summaries.
func New(client *anthropic.Client, chatModel, summaryModel string) *Service {
	return &Service{
		client:       client,
		chatModel:    chatModel,
		summaryModel: summaryModel,
	}
}

const classifyTemplate = `Classify this email into one category based on the following rules:

IGNORE rules: %s

NOTIFY rules: %s

RESPOND rules: %s

Email:
From: %s
Subject: %s
Body: %s

Respond with ONLY one word: ignore, notify, or respond`

// ClassifyEmail asks the model to triage the email under the given rules.
func (s *Service) ClassifyEmail(ctx context.Context, email core.Email, rules core.RuleSet) (core.Category, error) {
	body := email.Body
	if len(body) > 500 {
		body = body[:500]
	}
	prompt := fmt.Sprintf(classifyTemplate,
		rules.Ignore, rules.Notify, rules.Respond,
		email.Sender, email.Subject, body)

	text, err := s.complete(ctx, s.chatModel, "", prompt, 16)
	if err != nil {
		return "", err
	}

	category := core.Category(strings.ToLower(strings.TrimSpace(text)))
	if !category.Valid() {
		// An unparseable answer still means the model responded;
		// default to respond rather than dropping the email.
		return core.CategoryRespond, nil
	}
	return category, nil
}

const summarizeTemplate = `Summarize the following email conversations while preserving key details:

%s

Provide a concise summary focusing on key topics, decisions, action items,
and any detail needed for future responses.`

// Summarize folds text into a shorter summary.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(summarizeTemplate, text)
	return s.complete(ctx, s.summaryModel, "", prompt, 512)
}

// Generate produces the response for an assembled prompt.
func (s *Service) Generate(ctx context.Context, system, userMessage string) (string, error) {
	return s.complete(ctx, s.chatModel, system, userMessage, 1024)
}

func (s *Service) complete(ctx context.Context, model, system, user string, maxTokens int64) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

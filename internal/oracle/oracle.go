// Package oracle wraps the chat-completion API for the structured
// extraction calls the pipeline delegates: intent parsing, benefit
// analysis and response generation. Every structured call forces a
// single named function and feeds validation failures back to the model
// for correction.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/exp/slices"
)

// Validator parses and validates the forced function call's arguments.
// It returns (parsedResult, nil) on success or (nil, error) on failure;
// the error text is sent back to the model verbatim.
type Validator func(arguments json.RawMessage) (any, error)

// Client encapsulates forced function-calling against an
// OpenAI-compatible chat API
type Client struct {
	logger      *log.Logger
	client      *openai.Client
	model       string
	maxAttempts int
}

// NewClient creates an oracle client from an existing API client
func NewClient(logger *log.Logger, client *openai.Client, model string, maxAttempts int) *Client {
	return &Client{
		logger:      logger,
		client:      client,
		model:       model,
		maxAttempts: maxAttempts,
	}
}

// NewClientWithEndpoint creates an oracle client for any
// OpenAI-compatible endpoint (OpenAI, OpenRouter, LMStudio, etc)
func NewClientWithEndpoint(logger *log.Logger, apiKey, endpoint, model string, maxAttempts int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return NewClient(logger, openai.NewClientWithConfig(cfg), model, maxAttempts)
}

// CallFunction asks the model to call fn with the given prompts and
// returns the validator's parsed result. Invalid arguments are bounced
// back to the model with the validation error until maxAttempts is
// exhausted.
func (c *Client) CallFunction(
	ctx context.Context,
	systemPrompt string,
	userPrompt string,
	fn openai.FunctionDefinition,
	validate Validator,
) (any, error) {
	tool := openai.Tool{
		Type:     openai.ToolTypeFunction,
		Function: &fn,
	}
	toolChoice := openai.ToolChoice{
		Type:     openai.ToolTypeFunction,
		Function: openai.ToolFunction{Name: fn.Name},
	}

	initial := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}

	var (
		lastArguments string
		lastError     error
		chatMessages  = slices.Clone(initial)
	)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.logger.Debug("Running oracle call", "function", fn.Name, "attempt", attempt)

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:      c.model,
			Messages:   chatMessages,
			Tools:      []openai.Tool{tool},
			ToolChoice: toolChoice,
		})
		if err != nil {
			lastError = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastError = fmt.Errorf("no choices in response")
			continue
		}

		message := resp.Choices[0].Message
		if len(message.ToolCalls) == 0 {
			lastError = fmt.Errorf("no tool calls in response")
			continue
		}

		toolCall := message.ToolCalls[0]
		if toolCall.Function.Name != fn.Name {
			lastError = fmt.Errorf("unexpected tool call %q", toolCall.Function.Name)
			continue
		}
		lastArguments = toolCall.Function.Arguments

		parsed, err := validate(json.RawMessage(toolCall.Function.Arguments))
		if err == nil {
			c.logger.Debug("Oracle call validated", "function", fn.Name, "attempt", attempt)
			return parsed, nil
		}
		c.logger.Debug("Oracle call validation failed", "function", fn.Name, "error", err)
		lastError = err

		msg := ""
		if lastArguments != "" {
			msg += "Previous function call arguments:\n" + lastArguments + "\n"
		}
		msg += "Error: " + lastError.Error() + "\n"
		msg += "Please correct your response using only allowed values."
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: msg,
		})
	}

	return nil, fmt.Errorf("failed to get valid %s call after %d attempts: %w", fn.Name, c.maxAttempts, lastError)
}

// Complete runs a plain completion without tools, for free-text
// generation such as the recommendation explanation
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

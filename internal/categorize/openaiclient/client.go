// Package openaiclient implements transaction classification against
// an OpenAI-compatible chat completion endpoint with structured JSON
// output.
package openaiclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/cathal-killeen/fins/internal/categorize"
	"github.com/cathal-killeen/fins/pkg/errors"
)

// Config holds the connection settings for the classification API.
type Config struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Model   string `json:"model" mapstructure:"model"`
}

// DefaultConfig returns settings pointing at the standard OpenAI
// endpoint.
func DefaultConfig() *Config {
	return &Config{
		Model: openai.GPT4oMini,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

// Client classifies transaction batches via chat completions.
type Client struct {
	client *openai.Client
	model  string
}

// New creates a classification client.
func New(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "openai", nil, err)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
	}, nil
}

const systemPrompt = `You classify bank transactions into personal-finance categories.

%s

For every transaction in the input, return exactly one result carrying
the same id. Rules:
- category must be one of the listed categories, subcategory one of its
  listed subcategories or empty.
- confidence is between 0 and 1 and reflects how certain the assignment
  is. Use low confidence for ambiguous descriptions instead of guessing.
- is_recurring is true when the transaction looks like a subscription
  or other regularly repeating charge.
- Never invent, drop, or repeat ids.`

// resultsSchema constrains the structured output to a result list
// mirroring the submitted batch.
var resultsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"results": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"category": {"type": "string"},
					"subcategory": {"type": "string"},
					"is_recurring": {"type": "boolean"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1},
					"reasoning": {"type": "string"}
				},
				"required": ["id", "category", "confidence", "is_recurring"],
				"additionalProperties": false
			}
		}
	},
	"required": ["results"],
	"additionalProperties": false
}`)

type resultsEnvelope struct {
	Results []categorize.ClassificationResult `json:"results"`
}

// Classify submits one batch and decodes the structured response.
func (c *Client) Classify(ctx context.Context, batch []categorize.ClassificationRequest) ([]categorize.ClassificationResult, error) {
	payload, err := json.Marshal(map[string]interface{}{"transactions": batch})
	if err != nil {
		return nil, errors.ClassificationError(errors.CodeClassificationUnavailable,
			"failed to encode batch", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(systemPrompt, categorize.TaxonomyPrompt()),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: string(payload),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "classification_results",
				Schema: resultsSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, errors.ClassificationError(errors.CodeClassificationUnavailable,
			"chat completion request failed", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.ClassificationError(errors.CodeMalformedResponse,
			"response contained no choices", nil)
	}

	var envelope resultsEnvelope
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &envelope); err != nil {
		return nil, errors.ClassificationError(errors.CodeMalformedResponse,
			"response was not valid JSON", err)
	}

	return envelope.Results, nil
}

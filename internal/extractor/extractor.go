// Package extractor asks a language model for structured risk findings and
// validates the response against a fixed JSON schema.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/metrics"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// Extraction failure kinds. Both are logged by Extract and yield no risks.
var (
	ErrModelCall = errors.New("model call failed")
	ErrDecode    = errors.New("model response could not be decoded")
)

const schemaName = "zone_analysis"

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config selects the model.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type riskPayload struct {
	RiskLevel          string `json:"risk_level" description:"Low, Medium, or High" enum:"Low,Medium,High"`
	RiskScore          int    `json:"risk_score" description:"Severity from 0 to 10"`
	LocationIdentified string `json:"location_identified" description:"Street or area name found in text"`
	ThreatType         string `json:"threat_type" description:"e.g. Excavation, Road Grading, Drainage Works"`
	RecommendedAction  string `json:"recommended_action" description:"Specific directive for patrol teams"`
	Summary            string `json:"summary" description:"One or two sentence summary of the finding"`
	SourceURL          string `json:"source_url" description:"URL of the cited source"`
}

type analysisPayload struct {
	Risks []riskPayload `json:"risks"`
}

// Extractor implements sentinel.RiskExtractor.
type Extractor struct {
	client      chatClient
	model       string
	temperature float32
	timeout     time.Duration
	schema      *jsonschema.Definition
	validator   *gojsonschema.Schema
	logger      *zap.Logger
}

// New builds an Extractor backed by the OpenAI chat completions API.
func New(cfg Config, logger *zap.Logger) (*Extractor, error) {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return newWithClient(openai.NewClientWithConfig(oc), cfg, logger)
}

func newWithClient(client chatClient, cfg Config, logger *zap.Logger) (*Extractor, error) {
	schema, err := jsonschema.GenerateSchemaForType(analysisPayload{})
	if err != nil {
		return nil, fmt.Errorf("generate extraction schema: %w", err)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction schema: %w", err)
	}
	validator, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile extraction schema: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		schema:      schema,
		validator:   validator,
		logger:      logger,
	}, nil
}

// Extract returns the risks found in text. Failures are logged and yield
// an empty slice so one zone never aborts a sweep.
func (e *Extractor) Extract(ctx context.Context, zone sentinel.Zone, text string) []sentinel.Risk {
	risks, err := e.Analyze(ctx, zone, text)
	if err != nil {
		kind := "model_error"
		if errors.Is(err, ErrDecode) {
			kind = "decode_error"
		}
		metrics.ObserveExtraction(kind)
		e.logger.Error("risk extraction failed",
			zap.String("zone", zone.Name),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return []sentinel.Risk{}
	}
	if len(risks) == 0 {
		metrics.ObserveExtraction("empty")
	} else {
		metrics.ObserveExtraction("ok")
	}
	return risks
}

// Analyze performs the model call. Errors wrap ErrModelCall or ErrDecode.
func (e *Extractor) Analyze(ctx context.Context, zone sentinel.Zone, text string) ([]sentinel.Risk, error) {
	ctx, cancel := contextWithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(zone.Name, text)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: e.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelCall, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrDecode)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("%w: model refused: %s", ErrDecode, msg.Refusal)
	}
	return e.decode(zone, msg.Content)
}

func (e *Extractor) decode(zone sentinel.Zone, content string) ([]sentinel.Risk, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrDecode)
	}
	result, err := e.validator.Validate(gojsonschema.NewStringLoader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("%w: schema violations: %s", ErrDecode, strings.Join(msgs, "; "))
	}
	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	risks := make([]sentinel.Risk, 0, len(payload.Risks))
	for _, p := range payload.Risks {
		risks = append(risks, sentinel.NormalizeRisk(sentinel.Risk{
			Zone:              zone.Name,
			Level:             sentinel.Severity(p.RiskLevel),
			Score:             p.RiskScore,
			Location:          p.LocationIdentified,
			ThreatType:        p.ThreatType,
			RecommendedAction: p.RecommendedAction,
			Summary:           p.Summary,
			SourceURL:         p.SourceURL,
		}))
	}
	return risks, nil
}

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

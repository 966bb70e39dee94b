package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/omegabytes/carbonboard/apperr"
)

// Base URLs of the OpenAI-compatible chat completion endpoints of the supported vendors.
var DefaultBaseURLs = map[string]string{
	"openai": "https://api.openai.com/v1/",
	"groq":   "https://api.groq.com/openai/v1/",
	"gemini": "https://generativelanguage.googleapis.com/v1beta/openai/",
	"hf":     "https://router.huggingface.co/v1/",
}

// Settings configures an OpenAICompatible provider.
type Settings struct {
	Name    string
	APIKey  string
	BaseURL string
	Models  []string
	// Timeout bounds one request including retries. Zero means no timeout.
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

var _ Provider = &OpenAICompatible{}

// OpenAICompatible talks to any vendor exposing the OpenAI chat completions API.
type OpenAICompatible struct {
	name    string
	models  []string
	timeout time.Duration
	create  func(context.Context, openai.ChatCompletionNewParams, ...option.RequestOption) (*openai.ChatCompletion, error)
	now     func() time.Time
}

// NewOpenAICompatible returns a provider for s. A missing API key is reported as
// apperr.ErrUnsupported; a missing base URL is looked up in DefaultBaseURLs.
func NewOpenAICompatible(s Settings) (*OpenAICompatible, error) {
	name := normalizeName(s.Name)
	if name == "" {
		return nil, apperr.InvalidInputf("provider name cannot be empty")
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, apperr.Unsupportedf("provider %q has no API key", name)
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURLs[name]
	}
	if baseURL == "" {
		return nil, apperr.InvalidInputf("provider %q has no base URL", name)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(s.MaxRetries),
	}
	if s.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(s.HTTPClient))
	}

	client := openai.NewClient(opts...)
	return &OpenAICompatible{
		name:    name,
		models:  append([]string(nil), s.Models...),
		timeout: s.Timeout,
		create:  client.Chat.Completions.New,
		now:     time.Now,
	}, nil
}

func (o *OpenAICompatible) Name() string     { return o.name }
func (o *OpenAICompatible) Models() []string { return append([]string(nil), o.models...) }

// Complete sends prompt as a single user message and times the round trip.
func (o *OpenAICompatible) Complete(ctx context.Context, model, prompt string) (Completion, error) {
	model, err := resolveModel(o.name, model, o.models)
	if err != nil {
		return Completion{}, err
	}
	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := o.now()
	resp, err := o.create(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(model),
	})
	elapsed := o.now().Sub(start)

	if err != nil {
		return Completion{}, &CallError{Provider: o.name, Model: model, Elapsed: elapsed, Err: err}
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &CallError{
			Provider: o.name, Model: model, Elapsed: elapsed, Err: errors.New("response has no choices"),
		}
	}

	return Completion{
		Text:         resp.Choices[0].Message.Content,
		Elapsed:      elapsed,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Build registers one OpenAICompatible provider per settings entry. Entries that cannot serve
// requests are disabled rather than failing the whole registry.
func Build(settings []Settings) (*Registry, error) {
	r := NewRegistry()
	for _, s := range settings {
		p, err := NewOpenAICompatible(s)
		if errors.Is(err, apperr.ErrUnsupported) {
			r.Disable(s.Name, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

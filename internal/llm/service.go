package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/palchat/internal/metrics"
	"github.com/RichardoC/palchat/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

const (
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

const (
	CaptionFallback      = "Beautiful moment!"
	EmptyCaptionFallback = "New adventure!"
)

const (
	opCaption   = "caption"
	opReply     = "reply"
	opTranslate = "translate"
)

var errEmptyCompletion = errors.New("empty completion")

// ReplyFallback is the suggested reply used when the model cannot answer.
func ReplyFallback(lang models.Language) string {
	switch lang {
	case models.Bengali:
		return "ঠিক আছে"
	case models.Hindi:
		return "ठीक है"
	default:
		return "Okay"
	}
}

type Config struct {
	Provider string
	BaseURL  string
	Token    string
	Model    string
	// Timeout bounds each gateway call. Zero means 30s.
	Timeout time.Duration
}

// Service is the gateway to the generative model. It keeps no state between
// calls and is safe for concurrent use. None of its methods return errors:
// failures are logged and answered with a fallback value.
type Service struct {
	llm     llms.Model
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(ctx context.Context, cfg Config, logger *zap.Logger, m *metrics.Metrics) (*Service, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		model, err = openai.New(
			openai.WithToken(cfg.Token),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithModel(cfg.Model),
		)
	case ProviderGoogleAI:
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.Token),
			googleai.WithDefaultModel(cfg.Model),
		)
	case ProviderOllama:
		model, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s model: %w", cfg.Provider, err)
	}
	return NewWithModel(model, cfg.Timeout, logger, m), nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(model llms.Model, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{llm: model, timeout: timeout, logger: logger, metrics: m}
}

// GenerateCaption writes a caption for a base64 JPEG image. A data URL
// prefix ("data:image/jpeg;base64,") is accepted and stripped.
func (s *Service) GenerateCaption(ctx context.Context, image string, lang models.Language) string {
	s.metrics.GatewayRequest(opCaption)

	data, err := base64.StdEncoding.DecodeString(StripDataURL(image))
	if err == nil && len(data) == 0 {
		err = errors.New("empty image")
	}
	if err != nil {
		return s.fallback(opCaption, CaptionFallback, fmt.Errorf("failed to decode image: %w", err))
	}

	prompt := fmt.Sprintf("Generate a short, trendy social media caption for this image in %s. "+
		"Make it catchy and relevant. Respond with the caption only.", lang.Name())
	msgs := []llms.MessageContent{{
		Role: schema.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextContent{Text: prompt},
			llms.BinaryContent{MIMEType: "image/jpeg", Data: data},
		},
	}}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.llm.GenerateContent(ctx, msgs)
	if err != nil {
		return s.fallback(opCaption, CaptionFallback, fmt.Errorf("failed to generate caption: %w", err))
	}
	if len(resp.Choices) == 0 {
		return s.fallback(opCaption, EmptyCaptionFallback, errEmptyCompletion)
	}
	caption := cleanCompletion(resp.Choices[0].Content)
	if caption == "" {
		return s.fallback(opCaption, EmptyCaptionFallback, errEmptyCompletion)
	}
	return caption
}

// SuggestReply proposes a friendly reply to contextText in lang.
func (s *Service) SuggestReply(ctx context.Context, contextText string, lang models.Language) string {
	s.metrics.GatewayRequest(opReply)

	name := lang.Name()
	if lang == models.Bengali {
		name = "Bengali Unicode"
	}
	prompt := fmt.Sprintf("The user is chatting in a social app. Context: %q. "+
		"Suggest a friendly reply in %s. Return only the reply text.", contextText, name)

	reply, err := s.complete(ctx, prompt)
	if err != nil {
		return s.fallback(opReply, ReplyFallback(lang), err)
	}
	return reply
}

// Translate renders text in lang. On failure the text comes back unchanged.
func (s *Service) Translate(ctx context.Context, text string, lang models.Language) string {
	s.metrics.GatewayRequest(opTranslate)

	prompt := fmt.Sprintf("Translate the following text into %s. "+
		"Return only the translated text without any extra notes. Text: %q", lang.Name(), text)

	translated, err := s.complete(ctx, prompt)
	if err != nil {
		return s.fallback(opTranslate, text, err)
	}
	return translated
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	completion = cleanCompletion(completion)
	if completion == "" {
		return "", errEmptyCompletion
	}
	return completion, nil
}

func (s *Service) fallback(op, value string, err error) string {
	s.metrics.GatewayFallback(op)
	s.logger.Warn("gateway call fell back",
		zap.String("operation", op),
		zap.Error(err))
	return value
}

// StripDataURL drops a "data:<mime>;base64," prefix if present.
func StripDataURL(image string) string {
	if !strings.HasPrefix(image, "data:") {
		return image
	}
	if i := strings.IndexByte(image, ','); i >= 0 {
		return image[i+1:]
	}
	return ""
}

// cleanCompletion trims whitespace and a pair of surrounding quotes, which
// models like to add around one-line answers.
func cleanCompletion(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

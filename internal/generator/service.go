// Package generator orchestrates AI generation for tenants: it enforces the
// tenant budget, records every attempt in the request ledger, routes each
// operation to its provider and parses the freeform response.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/contentdeck/aigen/internal/models"
	"github.com/contentdeck/aigen/internal/provider"
	"github.com/contentdeck/aigen/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrEmptyOutput is returned when the provider answered with blank text
	ErrEmptyOutput = errors.New("provider returned empty text")

	// ErrStreamingUnsupported is returned when the routed provider cannot stream
	ErrStreamingUnsupported = errors.New("provider does not support streaming")

	// ErrProviderUnavailable is returned when no adapter is registered for a route
	ErrProviderUnavailable = errors.New("provider not registered")
)

// TextProvider generates text from a prompt
type TextProvider interface {
	Name() provider.Name
	IsConfigured() bool
	GenerateText(ctx context.Context, prompt string, opts provider.TextOptions) (*provider.TextResult, error)
}

// StreamingTextProvider additionally delivers text chunk by chunk
type StreamingTextProvider interface {
	TextProvider
	GenerateTextStream(ctx context.Context, prompt string, opts provider.TextOptions, onChunk func(chunk string) error) (*provider.TextResult, error)
}

// ImageProvider generates images from a prompt
type ImageProvider interface {
	Name() provider.Name
	IsConfigured() bool
	GenerateImage(ctx context.Context, opts provider.ImageOptions) (*provider.ImageResult, error)
}

// Budget is the tenant spend check used before and after each generation
type Budget interface {
	GetBudget(ctx context.Context, tenantID string) (*models.TenantBudget, error)
	CheckBudget(ctx context.Context, tenantID string) error
	RecordSpend(ctx context.Context, tenantID string, cost float64) error
}

// RequestLedger records generation attempts
type RequestLedger interface {
	Open(ctx context.Context, tenantID, userID string, reqType models.RequestType, model string, input any, metadata map[string]any) (*models.GenerationRequest, error)
	Complete(ctx context.Context, id uuid.UUID, c models.Completion) error
	Fail(ctx context.Context, id uuid.UUID, f models.Failure) error
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*models.GenerationRequest, error)
	History(ctx context.Context, tenantID string, filter models.HistoryFilter) (*models.HistoryPage, error)
	UsageStats(ctx context.Context, tenantID string) (*models.UsageStats, error)
}

// callParams are the fixed provider settings for one operation
type callParams struct {
	maxTokens   int
	temperature float64
}

var operationParams = map[models.RequestType]callParams{
	models.RequestTypeCaption:     {maxTokens: 500, temperature: 0.8},
	models.RequestTypeContent:     {maxTokens: 2000, temperature: 0.7},
	models.RequestTypeHashtag:     {maxTokens: 200, temperature: 0.7},
	models.RequestTypeImprovement: {maxTokens: 1000, temperature: 0.5},
}

var defaultTextModels = map[provider.Name]string{
	provider.OpenAIName:    provider.DefaultOpenAITextModel,
	provider.AnthropicName: provider.DefaultAnthropicTextModel,
}

// Config wires the service to its collaborators
type Config struct {
	Ledger         RequestLedger
	Budget         Budget
	TextProviders  []TextProvider
	ImageProviders []ImageProvider
	Logger         *zerolog.Logger
	Tracer         trace.Tracer
}

// Service is the generation orchestrator
type Service struct {
	ledger RequestLedger
	budget Budget
	text   map[provider.Name]TextProvider
	images map[provider.Name]ImageProvider
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new generation service
func NewService(cfg Config) *Service {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "generator").Logger()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("github.com/contentdeck/aigen/internal/generator")
	}

	s := &Service{
		ledger: cfg.Ledger,
		budget: cfg.Budget,
		text:   make(map[provider.Name]TextProvider, len(cfg.TextProviders)),
		images: make(map[provider.Name]ImageProvider, len(cfg.ImageProviders)),
		logger: logger,
		tracer: tracer,
		now:    time.Now,
	}
	for _, p := range cfg.TextProviders {
		s.text[p.Name()] = p
	}
	for _, p := range cfg.ImageProviders {
		s.images[p.Name()] = p
	}
	return s
}

// GenerateCaption writes social media captions, at most opts.Variations of them
func (s *Service) GenerateCaption(ctx context.Context, tenantID, userID string, opts CaptionOptions) (*CaptionResult, error) {
	opts = opts.withDefaults()

	p, err := s.textProvider(models.RequestTypeCaption)
	if err != nil {
		return nil, err
	}

	var captions []string
	id, err := s.execute(ctx, attempt{
		reqType:  models.RequestTypeCaption,
		tenantID: tenantID,
		userID:   userID,
		provider: p,
		model:    defaultTextModels[p.Name()],
		input:    opts,
		metadata: opts.Metadata,
	}, func(ctx context.Context) (*outcome, error) {
		res, err := s.generateText(ctx, p, models.RequestTypeCaption, buildCaptionPrompt(opts))
		if err != nil {
			return nil, err
		}
		captions = ParseCaptions(res.Text, opts.Variations)
		return textOutcome(p.Name(), res, map[string]any{"captions": captions}), nil
	})
	if err != nil {
		return nil, err
	}

	return &CaptionResult{Captions: captions, RequestID: id}, nil
}

// GenerateContent writes long-form content in one or more variations
func (s *Service) GenerateContent(ctx context.Context, tenantID, userID string, opts ContentOptions) (*ContentResult, error) {
	return s.generateContent(ctx, tenantID, userID, opts, nil)
}

// StreamContent behaves like GenerateContent but forwards text to onChunk as
// the provider produces it. The parsed variants are returned once the stream
// ends. An error from onChunk aborts the generation and fails the attempt.
func (s *Service) StreamContent(ctx context.Context, tenantID, userID string, opts ContentOptions, onChunk func(chunk string) error) (*ContentResult, error) {
	if onChunk == nil {
		onChunk = func(string) error { return nil }
	}
	return s.generateContent(ctx, tenantID, userID, opts, onChunk)
}

func (s *Service) generateContent(ctx context.Context, tenantID, userID string, opts ContentOptions, onChunk func(string) error) (*ContentResult, error) {
	opts = opts.withDefaults()

	p, err := s.textProvider(models.RequestTypeContent)
	if err != nil {
		return nil, err
	}

	var streamer StreamingTextProvider
	if onChunk != nil {
		var ok bool
		if streamer, ok = p.(StreamingTextProvider); !ok {
			return nil, fmt.Errorf("%w: %s", ErrStreamingUnsupported, p.Name())
		}
	}

	var content []string
	id, err := s.execute(ctx, attempt{
		reqType:  models.RequestTypeContent,
		tenantID: tenantID,
		userID:   userID,
		provider: p,
		model:    defaultTextModels[p.Name()],
		input:    opts,
		metadata: opts.Metadata,
	}, func(ctx context.Context) (*outcome, error) {
		prompt := buildContentPrompt(opts)

		var (
			res *provider.TextResult
			err error
		)
		if streamer != nil {
			res, err = streamer.GenerateTextStream(ctx, prompt, textOptions(p, models.RequestTypeContent), onChunk)
			if err == nil && strings.TrimSpace(res.Text) == "" {
				err = ErrEmptyOutput
			}
		} else {
			res, err = s.generateText(ctx, p, models.RequestTypeContent, prompt)
		}
		if err != nil {
			return nil, err
		}

		content = ParseContent(res.Text, opts.Variations)
		return textOutcome(p.Name(), res, map[string]any{"content": content}), nil
	})
	if err != nil {
		return nil, err
	}

	return &ContentResult{Content: content, RequestID: id}, nil
}

// GenerateImage generates images and passes the provider's list through
func (s *Service) GenerateImage(ctx context.Context, tenantID, userID string, opts ImageOptions) (*ImageResult, error) {
	opts = opts.withDefaults()

	name, err := Route(models.RequestTypeImage)
	if err != nil {
		return nil, err
	}
	p, ok := s.images[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, name)
	}

	var images []provider.Image
	id, err := s.execute(ctx, attempt{
		reqType:  models.RequestTypeImage,
		tenantID: tenantID,
		userID:   userID,
		provider: p,
		model:    provider.DefaultOpenAIImageModel,
		input:    opts,
		metadata: opts.Metadata,
	}, func(ctx context.Context) (*outcome, error) {
		res, err := p.GenerateImage(ctx, provider.ImageOptions{
			Prompt:  buildImagePrompt(opts),
			Size:    opts.Size,
			N:       opts.N,
			Quality: provider.DefaultImageQuality,
		})
		if err != nil {
			return nil, err
		}
		images = res.Images
		if images == nil {
			images = []provider.Image{}
		}
		return &outcome{
			output:   map[string]any{"images": images},
			cost:     res.Cost,
			provider: p.Name(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &ImageResult{Images: images, RequestID: id}, nil
}

// GenerateHashtags suggests hashtags for a piece of content
func (s *Service) GenerateHashtags(ctx context.Context, tenantID, userID string, opts HashtagOptions) (*HashtagResult, error) {
	opts = opts.withDefaults()

	p, err := s.textProvider(models.RequestTypeHashtag)
	if err != nil {
		return nil, err
	}

	var hashtags []string
	id, err := s.execute(ctx, attempt{
		reqType:  models.RequestTypeHashtag,
		tenantID: tenantID,
		userID:   userID,
		provider: p,
		model:    defaultTextModels[p.Name()],
		input:    opts,
		metadata: opts.Metadata,
	}, func(ctx context.Context) (*outcome, error) {
		res, err := s.generateText(ctx, p, models.RequestTypeHashtag, buildHashtagPrompt(opts))
		if err != nil {
			return nil, err
		}
		hashtags = ParseHashtags(res.Text)
		return textOutcome(p.Name(), res, map[string]any{"hashtags": hashtags}), nil
	})
	if err != nil {
		return nil, err
	}

	return &HashtagResult{Hashtags: hashtags, RequestID: id}, nil
}

// ImproveContent rewrites content and lists the improvements made
func (s *Service) ImproveContent(ctx context.Context, tenantID, userID string, opts ImprovementOptions) (*ImprovementResult, error) {
	opts = opts.withDefaults()

	p, err := s.textProvider(models.RequestTypeImprovement)
	if err != nil {
		return nil, err
	}

	result := &ImprovementResult{}
	id, err := s.execute(ctx, attempt{
		reqType:  models.RequestTypeImprovement,
		tenantID: tenantID,
		userID:   userID,
		provider: p,
		model:    defaultTextModels[p.Name()],
		input:    opts,
		metadata: opts.Metadata,
	}, func(ctx context.Context) (*outcome, error) {
		res, err := s.generateText(ctx, p, models.RequestTypeImprovement, buildImprovementPrompt(opts))
		if err != nil {
			return nil, err
		}
		result.ImprovedContent, result.Suggestions = ParseImprovement(res.Text)
		return textOutcome(p.Name(), res, map[string]any{
			"improvedContent": result.ImprovedContent,
			"suggestions":     result.Suggestions,
		}), nil
	})
	if err != nil {
		return nil, err
	}

	result.RequestID = id
	return result, nil
}

// GetRequestHistory returns a page of the tenant's generation requests
func (s *Service) GetRequestHistory(ctx context.Context, tenantID string, filter models.HistoryFilter) (*models.HistoryPage, error) {
	page, err := s.ledger.History(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load request history: %w", err)
	}
	return page, nil
}

// GetRequest returns one of the tenant's generation requests
func (s *Service) GetRequest(ctx context.Context, tenantID string, id uuid.UUID) (*models.GenerationRequest, error) {
	r, err := s.ledger.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load generation request: %w", err)
	}
	return r, nil
}

// GetUsageStats aggregates the tenant's completed generation requests
func (s *Service) GetUsageStats(ctx context.Context, tenantID string) (*models.UsageStats, error) {
	stats, err := s.ledger.UsageStats(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage stats: %w", err)
	}
	return stats, nil
}

// GetBudget returns the tenant's AI budget
func (s *Service) GetBudget(ctx context.Context, tenantID string) (*models.TenantBudget, error) {
	return s.budget.GetBudget(ctx, tenantID)
}

// ProviderStatus describes one registered provider
type ProviderStatus struct {
	Name       provider.Name        `json:"name"`
	Configured bool                 `json:"configured"`
	Operations []models.RequestType `json:"operations"`
}

// ProviderStatus reports whether each registered provider has credentials and
// which operations route to it. No network calls are made.
func (s *Service) ProviderStatus() []ProviderStatus {
	configured := make(map[provider.Name]bool)
	for name, p := range s.text {
		configured[name] = p.IsConfigured()
	}
	for name, p := range s.images {
		configured[name] = configured[name] || p.IsConfigured()
	}

	statuses := make([]ProviderStatus, 0, len(configured))
	for name, ok := range configured {
		ops := make([]models.RequestType, 0)
		for _, t := range models.AllRequestTypes {
			if routed, err := Route(t); err == nil && routed == name {
				ops = append(ops, t)
			}
		}
		statuses = append(statuses, ProviderStatus{Name: name, Configured: ok, Operations: ops})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// capability is the part of every adapter execute needs
type capability interface {
	Name() provider.Name
	IsConfigured() bool
}

// attempt describes one generation for execute
type attempt struct {
	reqType  models.RequestType
	tenantID string
	userID   string
	provider capability
	model    string
	input    any
	metadata map[string]any
}

// outcome is what a successful provider call contributes to the ledger
type outcome struct {
	output   any
	tokens   int
	cost     float64
	provider provider.Name
}

// execute runs the shared generation lifecycle around call: budget check,
// ledger open, provider call, then ledger complete and spend, or ledger fail.
// Every error after the ledger row is opened is recorded on that row and
// returned as a GenerationFailedError.
func (s *Service) execute(ctx context.Context, a attempt, call func(context.Context) (*outcome, error)) (uuid.UUID, error) {
	ctx, span := s.tracer.Start(ctx, "generator."+string(a.reqType), trace.WithAttributes(
		attribute.String("tenant.id", a.tenantID),
		attribute.String("ai.request_type", string(a.reqType)),
		attribute.String("ai.provider", string(a.provider.Name())),
	))
	defer span.End()

	logger := s.logger.With().
		Str("tenant_id", a.tenantID).
		Str("type", string(a.reqType)).
		Logger()

	if err := s.budget.CheckBudget(ctx, a.tenantID); err != nil {
		if errors.Is(err, ErrBudgetExceeded) {
			telemetry.AIBudgetRejectionsTotal.Inc()
			logger.Warn().Err(err).Msg("AI budget exhausted, refusing generation")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return uuid.Nil, err
	}

	start := s.now()

	req, err := s.ledger.Open(ctx, a.tenantID, a.userID, a.reqType, a.model, a.input, a.metadata)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open generation request")
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger open failed")
		return uuid.Nil, fmt.Errorf("failed to open generation request: %w", err)
	}

	span.SetAttributes(attribute.String("ai.request_id", req.ID.String()))
	logger = logger.With().Str("request_id", req.ID.String()).Str("model", a.model).Logger()

	// Once the row is open the attempt runs to completion or failure even if
	// the caller goes away. The provider HTTP client timeout bounds the call.
	runCtx := context.WithoutCancel(ctx)

	var out *outcome
	if !a.provider.IsConfigured() {
		err = provider.NotConfigured(a.provider.Name())
	} else {
		out, err = call(runCtx)
	}
	elapsedMS := int(s.now().Sub(start).Milliseconds())

	if err == nil {
		completion := models.Completion{
			Output:           out.output,
			TokensUsed:       out.tokens,
			CostUSD:          out.cost,
			ProcessingTimeMS: elapsedMS,
		}
		if cerr := s.ledger.Complete(runCtx, req.ID, completion); cerr != nil {
			err = fmt.Errorf("failed to record completion: %w", cerr)
		}
	}

	telemetry.AIGenerationDuration.WithLabelValues(string(a.reqType)).Observe(float64(elapsedMS) / 1000)

	if err != nil {
		if ferr := s.ledger.Fail(runCtx, req.ID, models.Failure{ErrorMessage: err.Error(), ProcessingTimeMS: elapsedMS}); ferr != nil {
			logger.Error().Err(ferr).Msg("Failed to record generation failure")
		}
		telemetry.AIGenerationsTotal.WithLabelValues(string(a.reqType), telemetry.StatusFailed).Inc()
		logger.Error().Err(err).Int("processing_time_ms", elapsedMS).Msg("AI generation failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return req.ID, &GenerationFailedError{
			Operation: operationLabel(a.reqType),
			RequestID: req.ID,
			Message:   err.Error(),
			Err:       err,
		}
	}

	// The attempt is complete and the provider has billed it, so a failed
	// spend update is logged rather than turned into a generation failure.
	if err := s.budget.RecordSpend(runCtx, a.tenantID, out.cost); err != nil {
		logger.Error().Err(err).Float64("cost_usd", out.cost).Msg("Failed to record AI spend")
	}

	telemetry.AIGenerationsTotal.WithLabelValues(string(a.reqType), telemetry.StatusCompleted).Inc()
	telemetry.AITokensTotal.WithLabelValues(string(out.provider)).Add(float64(out.tokens))
	telemetry.AICostUSDTotal.WithLabelValues(string(out.provider)).Add(out.cost)

	span.SetAttributes(
		attribute.Int("ai.tokens_used", out.tokens),
		attribute.Float64("ai.cost_usd", out.cost),
	)
	logger.Debug().
		Int("tokens_used", out.tokens).
		Float64("cost_usd", out.cost).
		Int("processing_time_ms", elapsedMS).
		Msg("AI generation completed")

	return req.ID, nil
}

func (s *Service) textProvider(t models.RequestType) (TextProvider, error) {
	name, err := Route(t)
	if err != nil {
		return nil, err
	}
	p, ok := s.text[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, name)
	}
	return p, nil
}

func (s *Service) generateText(ctx context.Context, p TextProvider, t models.RequestType, prompt string) (*provider.TextResult, error) {
	res, err := p.GenerateText(ctx, prompt, textOptions(p, t))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, ErrEmptyOutput
	}
	return res, nil
}

func textOptions(p TextProvider, t models.RequestType) provider.TextOptions {
	params := operationParams[t]
	return provider.TextOptions{
		Model:       defaultTextModels[p.Name()],
		MaxTokens:   params.maxTokens,
		Temperature: params.temperature,
	}
}

func textOutcome(name provider.Name, res *provider.TextResult, output any) *outcome {
	return &outcome{
		output:   output,
		tokens:   res.TokensUsed,
		cost:     res.Cost,
		provider: name,
	}
}

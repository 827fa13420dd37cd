package generator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/contentdeck/aigen/internal/db"
	"github.com/contentdeck/aigen/internal/models"
	"github.com/contentdeck/aigen/internal/provider"
	"github.com/google/uuid"
)

// memoryStore implements LedgerDB and TenantStore with the same transition
// rules as the SQL queries
type memoryStore struct {
	mu       sync.Mutex
	tenants  map[string]*models.TenantBudget
	requests []*models.GenerationRequest

	createErr   error
	completeErr error
	budgetErr   error
	spendErr    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tenants: make(map[string]*models.TenantBudget)}
}

func (m *memoryStore) addTenant(id string, limit, usage float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[id] = &models.TenantBudget{TenantID: id, AIBudgetLimit: limit, AIUsageCurrent: usage}
}

func (m *memoryStore) usage(id string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tenants[id].AIUsageCurrent
}

func (m *memoryStore) all() []*models.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.GenerationRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *memoryStore) find(id uuid.UUID) *models.GenerationRequest {
	for _, r := range m.requests {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (m *memoryStore) CreateGenerationRequest(ctx context.Context, r *models.GenerationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *r
	m.requests = append(m.requests, &cp)
	return nil
}

func (m *memoryStore) CompleteGenerationRequest(ctx context.Context, id uuid.UUID, output []byte, tokensUsed int, costUSD float64, processingTimeMS int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		return m.completeErr
	}
	r := m.find(id)
	if r == nil || r.Status != models.RequestStatusProcessing {
		return fmt.Errorf("%w: %s", db.ErrAlreadyFinalized, id)
	}
	r.Status = models.RequestStatusCompleted
	r.Output = output
	r.TokensUsed = tokensUsed
	r.CostUSD = costUSD
	r.ProcessingTimeMS = &processingTimeMS
	return nil
}

func (m *memoryStore) FailGenerationRequest(ctx context.Context, id uuid.UUID, errorMessage string, processingTimeMS int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(id)
	if r == nil || r.Status != models.RequestStatusProcessing {
		return fmt.Errorf("%w: %s", db.ErrAlreadyFinalized, id)
	}
	r.Status = models.RequestStatusFailed
	r.ErrorMessage = &errorMessage
	r.ProcessingTimeMS = &processingTimeMS
	return nil
}

func (m *memoryStore) GetGenerationRequest(ctx context.Context, tenantID string, id uuid.UUID) (*models.GenerationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(id)
	if r == nil || r.TenantID != tenantID {
		return nil, fmt.Errorf("generation request %s: %w", id, db.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *memoryStore) ListGenerationRequests(ctx context.Context, tenantID string, filter models.HistoryFilter) ([]*models.GenerationRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*models.GenerationRequest, 0)
	for i := len(m.requests) - 1; i >= 0; i-- {
		r := m.requests[i]
		if r.TenantID != tenantID {
			continue
		}
		if filter.Type != nil && r.Type != *filter.Type {
			continue
		}
		matched = append(matched, r)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if filter.Offset >= total {
		return []*models.GenerationRequest{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (m *memoryStore) GetUsageByType(ctx context.Context, tenantID string) (map[models.RequestType]models.TypeUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	usage := make(map[models.RequestType]models.TypeUsage)
	for _, r := range m.requests {
		if r.TenantID != tenantID || r.Status != models.RequestStatusCompleted {
			continue
		}
		u := usage[r.Type]
		u.Count++
		u.Cost += r.CostUSD
		u.Tokens += r.TokensUsed
		usage[r.Type] = u
	}
	return usage, nil
}

func (m *memoryStore) GetTenantBudget(ctx context.Context, tenantID string) (*models.TenantBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.budgetErr != nil {
		return nil, m.budgetErr
	}
	b, ok := m.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, db.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (m *memoryStore) AddTenantAIUsage(ctx context.Context, tenantID string, cost float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spendErr != nil {
		return m.spendErr
	}
	b, ok := m.tenants[tenantID]
	if !ok {
		return fmt.Errorf("tenant %s: %w", tenantID, db.ErrNotFound)
	}
	b.AIUsageCurrent += cost
	return nil
}

// mockTextProvider is a TextProvider and StreamingTextProvider returning canned text
type mockTextProvider struct {
	name       provider.Name
	configured bool
	text       string
	tokens     int
	cost       float64
	chunks     []string
	err        error

	calls      int
	lastPrompt string
	lastOpts   provider.TextOptions
}

func (m *mockTextProvider) Name() provider.Name { return m.name }

func (m *mockTextProvider) IsConfigured() bool { return m.configured }

func (m *mockTextProvider) GenerateText(ctx context.Context, prompt string, opts provider.TextOptions) (*provider.TextResult, error) {
	m.calls++
	m.lastPrompt = prompt
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &provider.TextResult{Text: m.text, Model: opts.Model, TokensUsed: m.tokens, Cost: m.cost}, nil
}

func (m *mockTextProvider) GenerateTextStream(ctx context.Context, prompt string, opts provider.TextOptions, onChunk func(string) error) (*provider.TextResult, error) {
	m.calls++
	m.lastPrompt = prompt
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	text := ""
	for _, chunk := range m.chunks {
		if err := onChunk(chunk); err != nil {
			return nil, err
		}
		text += chunk
	}
	return &provider.TextResult{Text: text, Model: opts.Model, TokensUsed: m.tokens, Cost: m.cost}, nil
}

// plainTextProvider hides the streaming method of a mockTextProvider
type plainTextProvider struct {
	inner *mockTextProvider
}

func (p plainTextProvider) Name() provider.Name { return p.inner.Name() }

func (p plainTextProvider) IsConfigured() bool { return p.inner.IsConfigured() }

func (p plainTextProvider) GenerateText(ctx context.Context, prompt string, opts provider.TextOptions) (*provider.TextResult, error) {
	return p.inner.GenerateText(ctx, prompt, opts)
}

// mockImageProvider returns canned images
type mockImageProvider struct {
	configured bool
	images     []provider.Image
	cost       float64
	err        error

	calls    int
	lastOpts provider.ImageOptions
}

func (m *mockImageProvider) Name() provider.Name { return provider.OpenAIName }

func (m *mockImageProvider) IsConfigured() bool { return m.configured }

func (m *mockImageProvider) GenerateImage(ctx context.Context, opts provider.ImageOptions) (*provider.ImageResult, error) {
	m.calls++
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &provider.ImageResult{Images: m.images, Model: provider.DefaultOpenAIImageModel, Cost: m.cost}, nil
}

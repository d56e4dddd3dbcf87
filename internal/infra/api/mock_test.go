//go:build !integration

package api

import (
	"context"
	"sync"
	"time"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/adapter"
	"langtest-practice/internal/usecase"
)

// --- Mock use cases ---

type mockAccountUC struct {
	usecase.AccountUseCase // Embed interface for forward compatibility
	mu                     sync.Mutex
	accounts               map[string]*model.AccountRecord
	RegisterError          error
	UpdateError            error
	LastUpdate             usecase.ProfileUpdate
}

func newMockAccountUC(accs ...*model.AccountRecord) *mockAccountUC {
	m := &mockAccountUC{accounts: map[string]*model.AccountRecord{}}
	for _, a := range accs {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *mockAccountUC) Register(ctx context.Context, email, password, name string) (*model.AccountRecord, error) {
	if m.RegisterError != nil {
		return nil, m.RegisterError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := &model.AccountRecord{ID: "acc-new", Email: email, Name: name}
	m.accounts[acc.ID] = acc
	return acc, nil
}

func (m *mockAccountUC) Login(ctx context.Context, email, password string) (*model.AccountRecord, model.EffectiveEntitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email && password == "correct-horse" {
			ent, _ := model.ComputeEffectiveState(a, time.Now())
			return a, ent, nil
		}
	}
	return nil, model.EffectiveEntitlement{}, domain.ErrInvalidCredentials
}

func (m *mockAccountUC) Profile(ctx context.Context, id string) (*model.AccountRecord, model.EffectiveEntitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, model.EffectiveEntitlement{}, domain.ErrUnauthenticated
	}
	ent, _ := model.ComputeEffectiveState(a, time.Now())
	return a, ent, nil
}

func (m *mockAccountUC) UpdateProfile(ctx context.Context, id string, upd usecase.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastUpdate = upd
	return m.UpdateError
}

type mockTaskUC struct {
	usecase.TaskUseCase
	AvailableFunc func(ctx context.Context, accountID string) (*usecase.Availability, error)
	GenerateFunc  func(ctx context.Context, accountID, taskType, mode string) (*model.TaskResult, error)
	SpeakingFunc  func(ctx context.Context, accountID string, task *model.Task, audio []byte, mime string) (*model.TaskResult, error)
	WritingFunc   func(ctx context.Context, accountID string, task *model.Task, text string) (*model.TaskResult, error)
}

func (m *mockTaskUC) Available(ctx context.Context, accountID string) (*usecase.Availability, error) {
	return m.AvailableFunc(ctx, accountID)
}

func (m *mockTaskUC) Get(ctx context.Context, accountID, taskType string) (*model.Task, error) {
	if taskType == "UNKNOWN" {
		return nil, domain.ErrNotFound
	}
	return &model.Task{ID: "t1", Type: taskType}, nil
}

func (m *mockTaskUC) Generate(ctx context.Context, accountID, taskType, mode string) (*model.TaskResult, error) {
	return m.GenerateFunc(ctx, accountID, taskType, mode)
}

func (m *mockTaskUC) EvaluateWriting(ctx context.Context, accountID string, task *model.Task, text string) (*model.TaskResult, error) {
	return m.WritingFunc(ctx, accountID, task, text)
}

func (m *mockTaskUC) EvaluateSpeaking(ctx context.Context, accountID string, task *model.Task, audio []byte, mime string) (*model.TaskResult, error) {
	return m.SpeakingFunc(ctx, accountID, task, audio, mime)
}

type mockBillingUC struct {
	usecase.BillingUseCase
	WebhookError error
	Webhooks     int
}

func (m *mockBillingUC) Plans() []model.Plan { return model.Plans() }

func (m *mockBillingUC) StartCheckout(ctx context.Context, accountID, plan string) (*adapter.CheckoutSession, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if !model.IsKnownPlan(plan) {
		return nil, domain.ErrInvalidArgument
	}
	return &adapter.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
}

func (m *mockBillingUC) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	m.Webhooks++
	return m.WebhookError
}

type mockLimiter struct {
	mu    sync.Mutex
	count map[string]int
	Err   error
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == nil {
		m.count = map[string]int{}
	}
	m.count[key]++
	return m.count[key] <= limit, nil
}

//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/adapter"
	"langtest-practice/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func ptrTime(t time.Time) *time.Time { return &t }

// =============================
// Repositories
// =============================

// ---- MockAccountRepo ----

type MockAccountRepo struct {
	mu     sync.Mutex
	data   map[string]*model.AccountRecord
	claims map[string]time.Time

	FindByIDFunc          func(ctx context.Context, tx repository.Tx, id string) (*model.AccountRecord, error)
	ExpirePremiumFunc     func(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error)
	IncrementDemoUsedFunc func(ctx context.Context, tx repository.Tx, id string) (int, error)
	GrantPremiumFunc      func(ctx context.Context, tx repository.Tx, id string, until, grantedAt time.Time) error
	ReserveDemoFunc       func(ctx context.Context, tx repository.Tx, id string, until, now time.Time, limit int) (bool, error)

	ExpireCalls int
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func NewMockAccountRepo() *MockAccountRepo {
	return &MockAccountRepo{data: make(map[string]*model.AccountRecord), claims: make(map[string]time.Time)}
}

func clone(a *model.AccountRecord) *model.AccountRecord {
	c := *a
	if a.PremiumUntil != nil {
		c.PremiumUntil = ptrTime(*a.PremiumUntil)
	}
	if a.PremiumGrantedAt != nil {
		c.PremiumGrantedAt = ptrTime(*a.PremiumGrantedAt)
	}
	if a.CustomerRef != nil {
		ref := *a.CustomerRef
		c.CustomerRef = &ref
	}
	return &c
}

// Put stores acc as-is, bypassing Create validation.
func (m *MockAccountRepo) Put(acc *model.AccountRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	m.data[acc.ID] = clone(acc)
}

// Get returns a copy of the stored record, or nil.
func (m *MockAccountRepo) Get(id string) *model.AccountRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.data[id]; ok {
		return clone(a)
	}
	return nil
}

func (m *MockAccountRepo) Create(ctx context.Context, tx repository.Tx, acc *model.AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.data {
		if a.Email == acc.Email {
			return domain.ErrAlreadyExists
		}
	}
	m.data[acc.ID] = clone(acc)
	return nil
}

func (m *MockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccountRecord, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	if a := m.Get(id); a != nil {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockAccountRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.AccountRecord, error) {
	return m.FindByID(ctx, tx, id)
}

func (m *MockAccountRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.data {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAccountRepo) FindByCustomerRef(ctx context.Context, tx repository.Tx, ref string) (*model.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.data {
		if a.CustomerRef != nil && *a.CustomerRef == ref {
			return clone(a), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAccountRepo) ExpirePremium(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	m.ExpireCalls++
	m.mu.Unlock()
	if m.ExpirePremiumFunc != nil {
		return m.ExpirePremiumFunc(ctx, tx, id, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
	if !ok || !a.IsPremium || a.PremiumUntil == nil || a.PremiumUntil.After(now) {
		return false, nil
	}
	a.IsPremium = false
	return true, nil
}

func (m *MockAccountRepo) IncrementDemoUsed(ctx context.Context, tx repository.Tx, id string) (int, error) {
	if m.IncrementDemoUsedFunc != nil {
		return m.IncrementDemoUsedFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	a.DemoTasksUsed++
	delete(m.claims, id)
	return a.DemoTasksUsed, nil
}

func (m *MockAccountRepo) ReserveDemo(ctx context.Context, tx repository.Tx, id string, until, now time.Time, limit int) (bool, error) {
	if m.ReserveDemoFunc != nil {
		return m.ReserveDemoFunc(ctx, tx, id, until, now, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
	if !ok || a.DemoTasksUsed >= limit {
		return false, nil
	}
	if held, busy := m.claims[id]; busy && held.After(now) {
		return false, nil
	}
	m.claims[id] = until
	return true, nil
}

func (m *MockAccountRepo) ReleaseDemo(ctx context.Context, tx repository.Tx, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.claims[id]; ok && held.Equal(until) {
		delete(m.claims, id)
	}
	return nil
}

// Reserved reports whether a demo reservation is currently stored for id.
func (m *MockAccountRepo) Reserved(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.claims[id]
	return ok
}

func (m *MockAccountRepo) GrantPremium(ctx context.Context, tx repository.Tx, id string, until, grantedAt time.Time) error {
	if m.GrantPremiumFunc != nil {
		return m.GrantPremiumFunc(ctx, tx, id, until, grantedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsPremium = true
	a.PremiumUntil = ptrTime(until)
	a.PremiumGrantedAt = ptrTime(grantedAt)
	return nil
}

func (m *MockAccountRepo) RevokePremium(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsPremium = false
	a.PremiumUntil = nil
	return nil
}

func (m *MockAccountRepo) UpdateProfile(ctx context.Context, tx repository.Tx, id, name, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	if name != "" {
		a.Name = name
	}
	if passwordHash != "" {
		a.PasswordHash = passwordHash
	}
	return nil
}

func (m *MockAccountRepo) SetCustomerRefIfAbsent(ctx context.Context, tx repository.Tx, id, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	if a.CustomerRef == nil || *a.CustomerRef == "" {
		r := ref
		a.CustomerRef = &r
	}
	return *a.CustomerRef, nil
}

func (m *MockAccountRepo) ListLapsedPremium(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, a := range m.data {
		if a.IsPremium && a.PremiumUntil != nil && !a.PremiumUntil.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ---- MockUsageRepo ----

type MockUsageRepo struct {
	mu     sync.Mutex
	Events []*model.UsageEvent

	AppendFunc func(ctx context.Context, tx repository.Tx, ev *model.UsageEvent) error
}

var _ repository.UsageRepository = (*MockUsageRepo)(nil)

func NewMockUsageRepo() *MockUsageRepo { return &MockUsageRepo{} }

func (m *MockUsageRepo) Append(ctx context.Context, tx repository.Tx, ev *model.UsageEvent) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

func (m *MockUsageRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// ---- MockPaymentRepo ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.PaymentEvent

	InsertFunc func(ctx context.Context, tx repository.Tx, p *model.PaymentEvent) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: make(map[string]*model.PaymentEvent)}
}

func (m *MockPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PaymentEvent) (bool, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[p.ExternalPaymentID]; ok {
		return false, nil
	}
	cp := *p
	m.data[p.ExternalPaymentID] = &cp
	return true, nil
}

// Recorded returns the stored payment for an external id, or nil.
func (m *MockPaymentRepo) Recorded(externalID string) *model.PaymentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[externalID]
}

func (m *MockPaymentRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentEvent
	for _, p := range m.data {
		if p.AccountID == accountID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPaymentRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// ---- MockTxManager ----

// MockTxManager runs fn directly; the in-memory repos have no rollback.
type MockTxManager struct {
	Calls int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	return fn(ctx, repository.NoTX)
}

// ---- MockDemoClaimer ----

type MockDemoClaimer struct {
	mu   sync.Mutex
	held map[string]string

	TryClaimFunc func(ctx context.Context, accountID string, ttl time.Duration) (string, bool, error)
	Released     int
}

var _ repository.DemoClaimer = (*MockDemoClaimer)(nil)

func NewMockDemoClaimer() *MockDemoClaimer {
	return &MockDemoClaimer{held: make(map[string]string)}
}

func (m *MockDemoClaimer) TryClaim(ctx context.Context, accountID string, ttl time.Duration) (string, bool, error) {
	if m.TryClaimFunc != nil {
		return m.TryClaimFunc(ctx, accountID, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[accountID]; busy {
		return "", false, nil
	}
	tok := uuid.NewString()
	m.held[accountID] = tok
	return tok, true, nil
}

func (m *MockDemoClaimer) Release(ctx context.Context, accountID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[accountID] == token {
		delete(m.held, accountID)
	}
	m.Released++
	return nil
}

// ---- MockRateLimiter ----

type MockRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int

	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ repository.RateLimiter = (*MockRateLimiter)(nil)

func NewMockRateLimiter() *MockRateLimiter { return &MockRateLimiter{counts: make(map[string]int)} }

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key] <= limit, nil
}

// =============================
// Adapters
// =============================

// ---- MockAIAdapter ----

type MockAIAdapter struct {
	mu    sync.Mutex
	Calls int
	Last  []adapter.Message

	Reply           string
	ChatFunc        func(ctx context.Context, model string, msgs []adapter.Message) (string, adapter.Usage, error)
	CountTokensFunc func(ctx context.Context, model string, msgs []adapter.Message) (int, error)
}

var _ adapter.AIServiceAdapter = (*MockAIAdapter)(nil)

func (m *MockAIAdapter) Provider() string { return "mock" }

func (m *MockAIAdapter) CountTokens(ctx context.Context, model string, msgs []adapter.Message) (int, error) {
	if m.CountTokensFunc != nil {
		return m.CountTokensFunc(ctx, model, msgs)
	}
	n := 0
	for _, msg := range msgs {
		n += len(msg.Content) / 4
	}
	return n, nil
}

func (m *MockAIAdapter) ChatWithUsage(ctx context.Context, model string, msgs []adapter.Message) (string, adapter.Usage, error) {
	m.mu.Lock()
	m.Calls++
	m.Last = msgs
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, model, msgs)
	}
	reply := m.Reply
	if reply == "" {
		reply = `{"score": 9, "feedback": "ok"}`
	}
	return reply, adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (m *MockAIAdapter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// ---- MockPaymentGateway ----

type MockPaymentGateway struct {
	mu        sync.Mutex
	Customers int

	CreateCustomerFunc func(ctx context.Context, accountID, email string) (string, error)
	ParseWebhookFunc   func(payload []byte, signature string) (*model.BillingEvent, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreateCustomer(ctx context.Context, accountID, email string) (string, error) {
	m.mu.Lock()
	m.Customers++
	n := m.Customers
	m.mu.Unlock()
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, accountID, email)
	}
	return "cus_" + accountID + "_" + string(rune('0'+n)), nil
}

func (m *MockPaymentGateway) CreateCheckout(ctx context.Context, customerRef, accountID string, plan model.PlanType) (*adapter.CheckoutSession, error) {
	return &adapter.CheckoutSession{ID: "cs_" + accountID, URL: "https://pay.test/" + string(plan)}, nil
}

func (m *MockPaymentGateway) PortalURL(ctx context.Context, customerRef string) (string, error) {
	return "https://portal.test/" + customerRef, nil
}

func (m *MockPaymentGateway) ParseWebhook(payload []byte, signature string) (*model.BillingEvent, error) {
	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(payload, signature)
	}
	return nil, errors.New("not configured")
}

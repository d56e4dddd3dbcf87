// File: internal/usecase/task_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/adapter"
	"langtest-practice/internal/domain/ports/repository"
	"langtest-practice/internal/infra/logging"
	"langtest-practice/internal/infra/metrics"
)

// MinWritingChars is the shortest writing answer worth sending to the model.
const MinWritingChars = 20

const defaultAudioMIME = "audio/webm"

// ledgerMargin extends demo holds past the AI timeout to cover the ledger write.
const ledgerMargin = 10 * time.Second

// Availability statuses.
const (
	StatusPremium       = "premium"
	StatusDemo          = "demo"
	StatusDemoExhausted = "demo_exhausted"
	StatusGuest         = "guest"
)

// Availability describes which tasks the caller may open right now.
type Availability struct {
	Status          string
	Tasks           []model.Task
	CanGenerate     bool
	RemainingDemo   int
	UpgradeRequired bool
	LoginRequired   bool
	Message         string
}

// TaskConfig holds the model and limit settings for task operations.
type TaskConfig struct {
	WritingModel   string
	SpeakingModel  string
	Timeout        time.Duration
	MaxInputTokens int
	RateLimit      int // AI calls per account per RateWindow; 0 disables
	RateWindow     time.Duration
}

// Compile-time check
var _ TaskUseCase = (*taskUC)(nil)

type TaskUseCase interface {
	Available(ctx context.Context, accountID string) (*Availability, error)
	Get(ctx context.Context, accountID, taskType string) (*model.Task, error)
	Generate(ctx context.Context, accountID, taskType, mode string) (*model.TaskResult, error)
	EvaluateWriting(ctx context.Context, accountID string, task *model.Task, text string) (*model.TaskResult, error)
	EvaluateSpeaking(ctx context.Context, accountID string, task *model.Task, audio []byte, mimeType string) (*model.TaskResult, error)
}

type taskUC struct {
	ents    EntitlementUseCase
	usage   UsageUseCase
	ai      adapter.AIServiceAdapter
	claims  repository.DemoClaimer // optional
	limiter repository.RateLimiter // optional
	cfg     TaskConfig
	log     *zerolog.Logger
}

func NewTaskUseCase(
	ents EntitlementUseCase,
	usage UsageUseCase,
	ai adapter.AIServiceAdapter,
	claims repository.DemoClaimer,
	limiter repository.RateLimiter,
	cfg TaskConfig,
	logger *zerolog.Logger,
) *taskUC {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &taskUC{ents: ents, usage: usage, ai: ai, claims: claims, limiter: limiter, cfg: cfg, log: logger}
}

func (u *taskUC) Available(ctx context.Context, accountID string) (*Availability, error) {
	ent, err := u.ents.Evaluate(ctx, accountID, time.Now())
	if err != nil {
		return nil, err
	}
	switch {
	case ent.IsPremium:
		return &Availability{
			Status:        StatusPremium,
			Tasks:         PremiumTasks(),
			CanGenerate:   true,
			RemainingDemo: model.UnlimitedDemo,
			Message:       "You have unlimited access to all tasks!",
		}, nil
	case ent.Reason == model.ReasonUnauthenticated:
		return &Availability{
			Status:        StatusGuest,
			Tasks:         []model.Task{},
			LoginRequired: true,
			Message:       "Please log in to try a free demo task or upgrade to premium.",
		}, nil
	case ent.Allowed:
		return &Availability{
			Status:        StatusDemo,
			Tasks:         []model.Task{demoWritingTask, demoSpeakingTask},
			RemainingDemo: ent.DemoRemaining,
			Message:       fmt.Sprintf("Try %d free task! Upgrade for unlimited access.", ent.DemoRemaining),
		}, nil
	default:
		return &Availability{
			Status:          StatusDemoExhausted,
			Tasks:           []model.Task{},
			UpgradeRequired: true,
			Message:         "You have used your free demo. Upgrade to premium for unlimited access!",
		}, nil
	}
}

// Get returns the catalog task of taskType. Non-premium callers only see the
// demo tasks.
func (u *taskUC) Get(ctx context.Context, accountID, taskType string) (*model.Task, error) {
	ent, err := u.ents.Evaluate(ctx, accountID, time.Now())
	if err != nil {
		return nil, err
	}
	if !ent.IsPremium {
		switch taskType {
		case demoWritingTask.Type:
			t := demoWritingTask
			return &t, nil
		case demoSpeakingTask.Type:
			t := demoSpeakingTask
			return &t, nil
		}
		return nil, fmt.Errorf("%w: premium required", domain.ErrEntitlementExhausted)
	}
	t, ok := findTask(taskType)
	if !ok {
		return nil, fmt.Errorf("%w: task %q", domain.ErrNotFound, taskType)
	}
	return &t, nil
}

func (u *taskUC) Generate(ctx context.Context, accountID, taskType, mode string) (*model.TaskResult, error) {
	defer logging.TraceDuration(u.log, "TaskUC.Generate")()

	m, err := model.ParseTaskMode(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidArgument, mode)
	}
	if want, ok := ModeOf(taskType); !ok || want != m {
		return nil, fmt.Errorf("%w: unknown %s task type %q", domain.ErrInvalidArgument, m, taskType)
	}
	summary := model.TaskSummary{Type: taskType, Mode: m}

	out, degraded, err := u.consume(ctx, accountID, "generate", summary, u.cfg.WritingModel, generateMessages(taskType))
	if err != nil {
		return nil, err
	}

	details := out
	if m == model.TaskModeSpeaking {
		details, err = withSpeakingTimes(out, taskType)
		if err != nil {
			return nil, fmt.Errorf("%w: model output: %v", domain.ErrTransientDependency, err)
		}
	}
	task := &model.Task{
		ID:           uuid.NewString(),
		Mode:         m,
		Type:         taskType,
		Title:        taskTitles[taskType],
		Instructions: "Read the instructions.",
		Details:      details,
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return &model.TaskResult{Payload: payload, Degraded: degraded}, nil
}

func withSpeakingTimes(details json.RawMessage, taskType string) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(details, &fields); err != nil {
		return nil, err
	}
	fields["preparationTime"] = speakingPrepSeconds
	fields["speakingTime"] = SpeakingTime(taskType)
	return json.Marshal(fields)
}

func (u *taskUC) EvaluateWriting(ctx context.Context, accountID string, task *model.Task, text string) (*model.TaskResult, error) {
	defer logging.TraceDuration(u.log, "TaskUC.EvaluateWriting")()

	if task == nil || task.Type == "" {
		return nil, fmt.Errorf("%w: task required", domain.ErrInvalidArgument)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinWritingChars {
		return nil, fmt.Errorf("%w: response too short", domain.ErrInvalidArgument)
	}

	msgs := writingEvalMessages(task, text)
	if u.cfg.MaxInputTokens > 0 {
		n, err := u.ai.CountTokens(ctx, u.cfg.WritingModel, msgs)
		if err != nil {
			logging.With(ctx, u.log).Debug().Err(err).Msg("token count unavailable")
		} else if n > u.cfg.MaxInputTokens {
			return nil, fmt.Errorf("%w: response too long", domain.ErrInvalidArgument)
		}
	}

	summary := model.TaskSummary{Type: task.Type, Mode: model.TaskModeWriting}
	out, degraded, err := u.consume(ctx, accountID, "evaluate_writing", summary, u.cfg.WritingModel, msgs)
	if err != nil {
		return nil, err
	}
	return &model.TaskResult{Payload: out, Degraded: degraded}, nil
}

func (u *taskUC) EvaluateSpeaking(ctx context.Context, accountID string, task *model.Task, audio []byte, mimeType string) (*model.TaskResult, error) {
	defer logging.TraceDuration(u.log, "TaskUC.EvaluateSpeaking")()

	if task == nil || task.Type == "" {
		return nil, fmt.Errorf("%w: task required", domain.ErrInvalidArgument)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: audio data required", domain.ErrInvalidArgument)
	}
	if mimeType == "" {
		mimeType = defaultAudioMIME
	}

	msgs := speakingEvalMessages(task, adapter.Media{MIMEType: mimeType, Data: audio})
	summary := model.TaskSummary{Type: task.Type, Mode: model.TaskModeSpeaking}
	out, degraded, err := u.consume(ctx, accountID, "evaluate_speaking", summary, u.cfg.SpeakingModel, msgs)
	if err != nil {
		return nil, err
	}
	return &model.TaskResult{Payload: out, Degraded: degraded}, nil
}

// consume runs one entitlement-gated AI call and records it. The ledger write
// happens only after the model answered; a failed write still returns the
// answer, flagged degraded.
func (u *taskUC) consume(ctx context.Context, accountID, op string, task model.TaskSummary, modelName string, msgs []adapter.Message) (json.RawMessage, bool, error) {
	log := logging.With(logging.WithAccountID(ctx, accountID), u.log).With().Str("operation", op).Logger()

	ent, err := u.ents.Require(ctx, accountID, time.Now())
	if err != nil {
		metrics.IncAIOperation(op, "denied")
		return nil, false, err
	}

	if err := u.allow(ctx, &log, accountID); err != nil {
		metrics.IncAIOperation(op, "rate_limited")
		return nil, false, err
	}

	if !ent.IsPremium {
		release, err := u.holdDemo(ctx, &log, accountID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrRateLimited):
				metrics.IncAIOperation(op, "rate_limited")
			case errors.Is(err, domain.ErrTransientDependency):
				metrics.IncAIOperation(op, "store_error")
			default:
				metrics.IncAIOperation(op, "denied")
			}
			return nil, false, err
		}
		defer release()
	}

	callCtx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()
	start := time.Now()
	reply, usage, err := u.ai.ChatWithUsage(callCtx, modelName, msgs)
	latency := time.Since(start).Milliseconds()
	metrics.ObserveAICall(u.ai.Provider(), modelName, usage.PromptTokens, usage.CompletionTokens, latency, err == nil)
	if err != nil {
		metrics.IncAIOperation(op, "ai_error")
		log.Error().Err(err).Int64("latency_ms", latency).Msg("ai call failed")
		if errors.Is(err, domain.ErrInvalidArgument) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: ai: %v", domain.ErrTransientDependency, err)
	}

	out := cleanJSON(reply)
	if !json.Valid([]byte(out)) {
		metrics.IncAIOperation(op, "bad_output")
		log.Warn().Int("reply_len", len(reply)).Msg("model returned non-JSON output")
		return nil, false, fmt.Errorf("%w: model returned malformed output", domain.ErrTransientDependency)
	}

	degraded := false
	if err := u.usage.RecordConsumption(ctx, ent, task); err != nil {
		if !errors.Is(err, domain.ErrLedgerWrite) {
			return nil, false, err
		}
		degraded = true
	}
	if degraded {
		metrics.IncAIOperation(op, "degraded")
	} else {
		metrics.IncAIOperation(op, "ok")
	}
	return json.RawMessage(out), degraded, nil
}

// holdDemo reserves the caller's demo slot for one AI call plus its ledger
// write. Redis, when configured, turns overlapping requests away early; the
// account store reservation decides.
func (u *taskUC) holdDemo(ctx context.Context, log *zerolog.Logger, accountID string) (func(), error) {
	ttl := u.cfg.Timeout + ledgerMargin
	var releases []func()
	release := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	if u.claims != nil {
		token, ok, err := u.claims.TryClaim(ctx, accountID, ttl)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("demo claim unavailable, using store reservation only")
			metrics.IncDemoClaim("error")
		case !ok:
			metrics.IncDemoClaim("busy")
			return nil, fmt.Errorf("%w: a demo task is already in progress", domain.ErrRateLimited)
		default:
			metrics.IncDemoClaim("acquired")
			releases = append(releases, func() {
				if err := u.claims.Release(context.WithoutCancel(ctx), accountID, token); err != nil {
					log.Warn().Err(err).Msg("demo claim release failed")
				}
			})
		}
	}

	until, ok, err := u.usage.ReserveDemo(ctx, accountID, ttl)
	if err != nil {
		release()
		return nil, err
	}
	if !ok {
		release()
		// Either the demo was spent since our first read or another request holds it.
		if _, err := u.ents.Require(ctx, accountID, time.Now()); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: a demo task is already in progress", domain.ErrRateLimited)
	}
	releases = append(releases, func() {
		if err := u.usage.ReleaseDemo(context.WithoutCancel(ctx), accountID, until); err != nil {
			log.Warn().Err(err).Msg("demo reservation release failed")
		}
	})
	return release, nil
}

// allow applies the per-account AI rate limit. Limiter outages fail open.
func (u *taskUC) allow(ctx context.Context, log *zerolog.Logger, accountID string) error {
	if u.limiter == nil || u.cfg.RateLimit <= 0 {
		return nil
	}
	ok, err := u.limiter.Allow(ctx, aiRateKey(accountID), u.cfg.RateLimit, u.cfg.RateWindow)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		metrics.IncRateLimited("ai")
		return domain.ErrRateLimited
	}
	return nil
}

func aiRateKey(accountID string) string { return "rate_limit:" + accountID + ":ai" }

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/llm"
	"github.com/synera-br/splennet-backend/internal/metrics"
	"github.com/synera-br/splennet-backend/internal/models"
	"github.com/synera-br/splennet-backend/internal/ratelimit"
)

// Essay request bounds.
const (
	MinWordLimit     = 100
	MaxWordLimit     = 2000
	DefaultWordLimit = 650
	// MinEssayLength is the shortest provider answer, in characters, accepted as an essay.
	MinEssayLength = 100
	maxFieldLength = 5000
)

// GenerateResult is a generated essay and the usage after it was counted.
// Warnings holds non-fatal failures (ErrPersistenceFailed) of writes that followed generation.
// When saving failed Essay.ID is empty but Essay.GeneratedText is still set.
type GenerateResult struct {
	Essay    *models.Essay
	Usage    UsageDecision
	Warnings []error
}

// ImproveResult is a revised essay. Warnings holds ErrPersistenceFailed when the revision
// could not be saved; Essay.GeneratedText still carries the revised text.
type ImproveResult struct {
	Essay    *models.Essay
	Warnings []error
}

// essayService implements the EssayService interface.
type essayService struct {
	essays       db.EssayRepository
	entitlements db.EntitlementRepository
	users        UserService
	usage        UsageService
	generator    llm.Generator
	limiter      ratelimit.Limiter
	notifier     Notifier
	logger       *zap.Logger
}

// NewEssayService creates a new EssayService instance.
func NewEssayService(
	essays db.EssayRepository,
	entitlements db.EntitlementRepository,
	users UserService,
	usage UsageService,
	generator llm.Generator,
	limiter ratelimit.Limiter,
	notifier Notifier,
	logger *zap.Logger,
) EssayService {
	return &essayService{
		essays:       essays,
		entitlements: entitlements,
		users:        users,
		usage:        usage,
		generator:    generator,
		limiter:      limiter,
		notifier:     notifier,
		logger:       logger,
	}
}

// Generate runs one essay generation for the identity: gate, validation, rate limit,
// provider call, then the save and the counter increment. The last two are best-effort and
// never take the generated text away from the caller.
func (s *essayService) Generate(ctx context.Context, identity *models.Identity, req models.GenerateEssayRequest) (*GenerateResult, error) {
	if identity == nil || identity.UID == "" {
		return nil, ErrAuthRequired
	}
	userID := identity.UID

	ent, err := s.users.Entitlement(ctx, identity)
	if err != nil {
		return nil, err
	}
	decision, err := CheckUsage(ent, models.ActionEssay)
	if err != nil {
		return nil, err
	}
	metrics.RecordGateDecision(string(models.ActionEssay), decision.CanProceed)
	if !decision.CanProceed {
		return nil, &LimitReachedError{Action: models.ActionEssay, Tier: ent.PlanTier, Decision: decision}
	}

	req, err = normalizeEssayRequest(req)
	if err != nil {
		return nil, err
	}

	if err := s.allow(ctx, userID, "generate"); err != nil {
		return nil, err
	}

	prompt := llm.EssayPrompt(req.School, req.Prompt, req.Responses, req.WordLimit)
	text, err := s.generate(ctx, "generate", prompt)
	if err != nil {
		s.logger.Warn("essay generation failed", zap.String("userID", userID), zap.Error(err))
		return nil, err
	}

	// The essay has been produced. Follow-up writes must not be lost to a client disconnect.
	writeCtx := context.WithoutCancel(ctx)
	now := time.Now().UTC()
	essay := &models.Essay{
		UserID:        userID,
		School:        req.School,
		PromptText:    req.Prompt,
		Responses:     req.Responses,
		WordLimit:     req.WordLimit,
		GeneratedText: text,
		ReviewStatus:  models.ReviewNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	result := &GenerateResult{Essay: essay}

	if essayID, err := s.essays.Create(writeCtx, essay); err != nil {
		essay.ID = ""
		result.Warnings = append(result.Warnings, fmt.Errorf("%w: %v", ErrPersistenceFailed, err))
		secondaryWriteFailed(writeCtx, s.usage, s.logger, "essay_save", models.EventEssaySaveFailed, userID, "", err)
	} else {
		essay.ID = essayID
	}

	if err := s.entitlements.IncrementCounter(writeCtx, userID, models.CounterEssays); err != nil {
		secondaryWriteFailed(writeCtx, s.usage, s.logger, "usage_increment", models.EventUsageIncrementFailed, userID, essay.ID, err)
	} else {
		decision = countOne(decision)
	}
	result.Usage = decision

	recordEvent(writeCtx, s.usage, s.logger, models.UsageEvent{
		UserID:   userID,
		Action:   models.EventEssayGenerated,
		TargetID: essay.ID,
		Details: map[string]interface{}{
			"school":    essay.School,
			"wordLimit": essay.WordLimit,
			"saved":     essay.ID != "",
		},
	})
	if decision.Limit != models.Unlimited && decision.Remaining == 0 {
		notify(writeCtx, s.notifier, s.logger, limitNotification(ent, models.ActionEssay, decision))
	}
	return result, nil
}

// Get returns an essay owned by the user.
func (s *essayService) Get(ctx context.Context, userID, essayID string) (*models.Essay, error) {
	if userID == "" {
		return nil, ErrAuthRequired
	}
	if strings.TrimSpace(essayID) == "" {
		return nil, validationErr("essay id is required")
	}
	essay, err := s.essays.GetByID(ctx, essayID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: essay '%s'", ErrEssayNotFound, essayID)
		}
		return nil, fmt.Errorf("failed to get essay '%s': %w", essayID, err)
	}
	if essay.UserID != userID {
		return nil, fmt.Errorf("%w: essay '%s'", ErrForbidden, essayID)
	}
	return essay, nil
}

// List returns the essays of the user, newest first.
func (s *essayService) List(ctx context.Context, userID string) ([]*models.Essay, error) {
	if userID == "" {
		return nil, ErrAuthRequired
	}
	essays, err := s.essays.ListByUser(ctx, userID, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to list essays for user '%s': %w", userID, err)
	}
	return essays, nil
}

// UpdateText replaces the essay text with the user's edit.
func (s *essayService) UpdateText(ctx context.Context, userID, essayID, text string) (*models.Essay, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationErr("essay text cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxWordLimit*12 {
		return nil, validationErr("essay text is too long")
	}
	essay, err := s.Get(ctx, userID, essayID)
	if err != nil {
		return nil, err
	}
	if err := s.essays.UpdateText(ctx, essay.ID, text); err != nil {
		return nil, fmt.Errorf("failed to update essay '%s': %w", essayID, err)
	}
	essay.GeneratedText = text
	essay.UpdatedAt = time.Now().UTC()
	return essay, nil
}

// Improve revises the essay with the provider according to the user's feedback.
// It is rate limited like generation but does not consume the essay allowance.
func (s *essayService) Improve(ctx context.Context, userID, essayID, feedback string) (*ImproveResult, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, validationErr("feedback is required")
	}
	if utf8.RuneCountInString(feedback) > maxFieldLength {
		return nil, validationErr("feedback is too long")
	}
	essay, err := s.Get(ctx, userID, essayID)
	if err != nil {
		return nil, err
	}
	if err := s.allow(ctx, userID, "improve"); err != nil {
		return nil, err
	}

	text, err := s.generate(ctx, "improve", llm.ImprovePrompt(essay.GeneratedText, feedback))
	if err != nil {
		return nil, err
	}
	writeCtx := context.WithoutCancel(ctx)
	essay.GeneratedText = text
	essay.UpdatedAt = time.Now().UTC()
	result := &ImproveResult{Essay: essay}

	if err := s.essays.UpdateText(writeCtx, essay.ID, text); err != nil {
		result.Warnings = append(result.Warnings, fmt.Errorf("%w: %v", ErrPersistenceFailed, err))
		secondaryWriteFailed(writeCtx, s.usage, s.logger, "essay_save", models.EventEssaySaveFailed, userID, essay.ID, err)
	}

	recordEvent(writeCtx, s.usage, s.logger, models.UsageEvent{UserID: userID, Action: models.EventEssayImproved, TargetID: essay.ID})
	return result, nil
}

// allow consumes one slot of the user's generation window. A limiter failure is logged and
// the request is let through.
func (s *essayService) allow(ctx context.Context, userID, operation string) error {
	res, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		s.logger.Error("rate limiter unavailable, allowing request", zap.String("userID", userID), zap.Error(err))
		return nil
	}
	if !res.Allowed {
		metrics.RecordRateLimited(operation)
		return &RateLimitedError{RetryAfter: res.RetryAfter}
	}
	return nil
}

// generate calls the provider and rejects answers too short to be an essay.
func (s *essayService) generate(ctx context.Context, operation string, req llm.Request) (string, error) {
	start := time.Now()
	text, err := s.generator.Generate(ctx, req)
	text = strings.TrimSpace(text)
	if err == nil && utf8.RuneCountInString(text) < MinEssayLength {
		err = fmt.Errorf("response has %d characters, need at least %d", utf8.RuneCountInString(text), MinEssayLength)
	}
	metrics.RecordGeneration(operation, err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return text, nil
}

// normalizeEssayRequest trims the request and applies the default word limit.
func normalizeEssayRequest(req models.GenerateEssayRequest) (models.GenerateEssayRequest, error) {
	req.School = strings.TrimSpace(req.School)
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.School == "" {
		return req, validationErr("school is required")
	}
	if req.Prompt == "" {
		return req, validationErr("prompt is required")
	}
	if utf8.RuneCountInString(req.School) > 200 || utf8.RuneCountInString(req.Prompt) > maxFieldLength {
		return req, validationErr("school or prompt is too long")
	}

	responses := make(map[string]string, len(req.Responses))
	for k, v := range req.Responses {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if utf8.RuneCountInString(v) > maxFieldLength {
			return req, validationErr("response '%s' is too long", k)
		}
		responses[k] = v
	}
	if len(responses) == 0 {
		return req, validationErr("at least one response is required")
	}
	req.Responses = responses

	if req.WordLimit == 0 {
		req.WordLimit = DefaultWordLimit
	}
	if req.WordLimit < MinWordLimit || req.WordLimit > MaxWordLimit {
		return req, validationErr("word limit must be between %d and %d, got %d", MinWordLimit, MaxWordLimit, req.WordLimit)
	}
	return req, nil
}

// countOne returns the decision after one more use was recorded.
func countOne(d UsageDecision) UsageDecision {
	d.Used++
	if d.Limit == models.Unlimited {
		return d
	}
	d.Remaining = d.Limit - d.Used
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	d.CanProceed = d.Used < d.Limit
	return d
}

func limitNotification(ent *models.UserEntitlement, action models.ActionType, d UsageDecision) models.Notification {
	return models.Notification{
		Type:     models.NotifyUsageLimitReached,
		UserID:   ent.UserID,
		Email:    ent.Email,
		Name:     displayName(ent.FullName, ent.Email),
		PlanTier: ent.PlanTier,
		Data: map[string]string{
			"action": string(action),
			"used":   fmt.Sprint(d.Used),
			"limit":  fmt.Sprint(d.Limit),
		},
	}
}

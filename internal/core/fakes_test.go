package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/db/memory"
	"github.com/synera-br/splennet-backend/internal/llm"
	"github.com/synera-br/splennet-backend/internal/models"
	"github.com/synera-br/splennet-backend/internal/ratelimit"
)

// essayText is long enough to pass the minimum essay length check.
var essayText = strings.Repeat("A thoughtful sentence about growth. ", 10)

type fakeGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	last  llm.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	return g.text, g.err
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *fakeNotifier) ofType(t models.NotificationType) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, s := range n.sent {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// countingLimiter records calls and answers with a fixed result.
type countingLimiter struct {
	calls  int
	result ratelimit.Result
	err    error
}

func (l *countingLimiter) Allow(context.Context, string) (ratelimit.Result, error) {
	l.calls++
	return l.result, l.err
}

func allowAll() *countingLimiter {
	return &countingLimiter{result: ratelimit.Result{Allowed: true, Remaining: 5}}
}

type failingEssays struct {
	db.EssayRepository
	createErr error
	statusErr error
	updateErr error
}

func (r *failingEssays) UpdateText(ctx context.Context, essayID, text string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.EssayRepository.UpdateText(ctx, essayID, text)
}

func (r *failingEssays) Create(ctx context.Context, essay *models.Essay) (string, error) {
	if r.createErr != nil {
		return "", r.createErr
	}
	return r.EssayRepository.Create(ctx, essay)
}

func (r *failingEssays) UpdateReviewStatus(ctx context.Context, essayID string, status models.ReviewStatus, feedback string) error {
	if r.statusErr != nil {
		return r.statusErr
	}
	return r.EssayRepository.UpdateReviewStatus(ctx, essayID, status, feedback)
}

type failingEntitlements struct {
	db.EntitlementRepository
	getErr       error
	incrementErr error
}

func (r *failingEntitlements) GetByID(ctx context.Context, userID string) (*models.UserEntitlement, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.EntitlementRepository.GetByID(ctx, userID)
}

func (r *failingEntitlements) IncrementCounter(ctx context.Context, userID string, counter models.Counter) error {
	if r.incrementErr != nil {
		return r.incrementErr
	}
	return r.EntitlementRepository.IncrementCounter(ctx, userID, counter)
}

type fakeSubmitter struct {
	got db.ReviewSubmission
	err error
}

func (s *fakeSubmitter) SubmitReview(_ context.Context, sub db.ReviewSubmission) (string, error) {
	s.got = sub
	if s.err != nil {
		return "", s.err
	}
	return "review-tx-1", nil
}

type fakeIdentities struct {
	uid     string
	err     error
	created []string
	revoked []string
}

func (p *fakeIdentities) CreateUser(_ context.Context, email, _, _ string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.created = append(p.created, email)
	return p.uid, nil
}

func (p *fakeIdentities) RevokeRefreshTokens(_ context.Context, uid string) error {
	p.revoked = append(p.revoked, uid)
	return p.err
}

type fakeGateway struct {
	customerID string
	checkout   []CheckoutParams
	portal     []string
	event      stripe.Event
	eventErr   error
	err        error
}

func (g *fakeGateway) CreateCustomer(context.Context, string, string) (string, error) {
	return g.customerID, g.err
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, params CheckoutParams) (string, error) {
	g.checkout = append(g.checkout, params)
	return "https://checkout.stripe.test/" + params.PriceID, g.err
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	g.portal = append(g.portal, customerID)
	return returnURL + "?portal=" + customerID, g.err
}

func (g *fakeGateway) ConstructEvent([]byte, string) (stripe.Event, error) {
	return g.event, g.eventErr
}

// harness wires the core services on the in-memory store.
type harness struct {
	store    *db.Store
	catalog  *PlanCatalog
	usage    UsageService
	notifier *fakeNotifier
	gen      *fakeGenerator
	logger   *zap.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	catalog, err := LoadPlanCatalog("")
	require.NoError(t, err)
	store := memory.New().Repositories()
	return &harness{
		store:    store,
		catalog:  catalog,
		usage:    NewUsageService(store.Usage),
		notifier: &fakeNotifier{},
		gen:      &fakeGenerator{text: essayText},
		logger:   zap.NewNop(),
	}
}

func (h *harness) users() UserService {
	return NewUserService(h.store.Entitlements, h.catalog, nil, h.usage, h.notifier, h.logger)
}

func (h *harness) essayService(limiter ratelimit.Limiter) EssayService {
	return NewEssayService(h.store.Essays, h.store.Entitlements, h.users(), h.usage, h.gen, limiter, h.notifier, h.logger)
}

func (h *harness) reviewService() ReviewService {
	return NewReviewService(h.store, h.users(), h.usage, h.notifier, h.logger)
}

func (h *harness) seedUser(t *testing.T, id string, tier models.PlanTier, essays, reviews int) *models.Identity {
	t.Helper()
	require.NoError(t, h.store.Entitlements.Create(context.Background(), &models.UserEntitlement{
		UserID:           id,
		Email:            id + "@example.com",
		PlanTier:         tier,
		EssaysGenerated:  essays,
		HumanReviewsUsed: reviews,
		PeriodStart:      time.Now().UTC(),
	}))
	return &models.Identity{UID: id, Email: id + "@example.com"}
}

func (h *harness) seedEssay(t *testing.T, userID string, status models.ReviewStatus) string {
	t.Helper()
	id, err := h.store.Essays.Create(context.Background(), &models.Essay{
		UserID:        userID,
		School:        "Stanford",
		PromptText:    "What matters to you?",
		GeneratedText: essayText,
		ReviewStatus:  status,
		CreatedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func (h *harness) entitlement(t *testing.T, userID string) *models.UserEntitlement {
	t.Helper()
	ent, err := h.store.Entitlements.GetByID(context.Background(), userID)
	require.NoError(t, err)
	h.catalog.Apply(ent)
	return ent
}

func (h *harness) events(t *testing.T, userID string) []string {
	t.Helper()
	events, err := h.usage.History(context.Background(), userID, 100)
	require.NoError(t, err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

func validEssayRequest() models.GenerateEssayRequest {
	return models.GenerateEssayRequest{
		School:    "Stanford",
		Prompt:    "What matters to you, and why?",
		Responses: map[string]string{"experience": "I rebuilt a bike shop's inventory system."},
	}
}

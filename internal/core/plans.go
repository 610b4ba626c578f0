package core

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/synera-br/splennet-backend/internal/models"
)

//go:embed plans.yaml
var defaultPlans []byte

// ErrPlanNotFound is returned when a tier or price ID is not in the catalog.
var ErrPlanNotFound = errors.New("plan or price ID not found")

// Plan describes one subscription tier.
type Plan struct {
	Tier          models.PlanTier   `yaml:"-" json:"tier"`
	Name          string            `yaml:"name" json:"name"`
	Description   string            `yaml:"description" json:"description"`
	Price         string            `yaml:"price" json:"price"`
	Interval      string            `yaml:"interval" json:"interval,omitempty"`
	StripePriceID string            `yaml:"stripePriceId" json:"-"`
	Limits        models.PlanLimits `yaml:"limits" json:"limits"`
}

// PlanCatalog maps tiers to their limits and prices.
type PlanCatalog struct {
	plans map[models.PlanTier]Plan
}

type planFile struct {
	Plans map[models.PlanTier]Plan `yaml:"plans"`
}

// LoadPlanCatalog reads the catalog from path, or the built-in catalog when path is empty.
func LoadPlanCatalog(path string) (*PlanCatalog, error) {
	if path == "" {
		return ParsePlanCatalog(defaultPlans)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog '%s': %w", path, err)
	}
	return ParsePlanCatalog(data)
}

// ParsePlanCatalog parses a YAML catalog. Every tier must be present.
func ParsePlanCatalog(data []byte) (*PlanCatalog, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	c := &PlanCatalog{plans: make(map[models.PlanTier]Plan, len(f.Plans))}
	for _, tier := range []models.PlanTier{models.PlanFree, models.PlanMonthly, models.PlanYearly} {
		p, ok := f.Plans[tier]
		if !ok {
			return nil, fmt.Errorf("plan catalog is missing tier '%s'", tier)
		}
		if p.Limits.Essays < models.Unlimited || p.Limits.HumanReviews < models.Unlimited {
			return nil, fmt.Errorf("plan '%s' has a negative limit", tier)
		}
		p.Tier = tier
		c.plans[tier] = p
	}
	return c, nil
}

// WithPriceID overrides the Stripe price of a paid tier.
func (c *PlanCatalog) WithPriceID(tier models.PlanTier, priceID string) {
	if priceID == "" {
		return
	}
	if p, ok := c.plans[tier]; ok {
		p.StripePriceID = priceID
		c.plans[tier] = p
	}
}

// Plan returns the plan of a tier.
func (c *PlanCatalog) Plan(tier models.PlanTier) (Plan, bool) {
	p, ok := c.plans[tier]
	return p, ok
}

// Limits returns the limits of a tier. Unknown tiers get the free limits.
func (c *PlanCatalog) Limits(tier models.PlanTier) models.PlanLimits {
	if p, ok := c.plans[tier]; ok {
		return p.Limits
	}
	return c.plans[models.PlanFree].Limits
}

// Apply derives ent.PlanLimits from ent.PlanTier.
func (c *PlanCatalog) Apply(ent *models.UserEntitlement) {
	if ent == nil {
		return
	}
	ent.PlanLimits = c.Limits(ent.PlanTier)
}

// Paid returns the paid plans, monthly first.
func (c *PlanCatalog) Paid() []Plan {
	return []Plan{c.plans[models.PlanMonthly], c.plans[models.PlanYearly]}
}

// All returns every plan, free first.
func (c *PlanCatalog) All() []Plan {
	return append([]Plan{c.plans[models.PlanFree]}, c.Paid()...)
}

// ByPriceID finds the plan sold under a Stripe price.
func (c *PlanCatalog) ByPriceID(priceID string) (Plan, bool) {
	for _, p := range c.plans {
		if p.StripePriceID != "" && p.StripePriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}

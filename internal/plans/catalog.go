package plans

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/angelmondragon/releasehub-billing/pkg/config"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
)

// Entry maps one Stripe price to the plan and role it grants.
type Entry struct {
	PriceID  string            `json:"price_id" validate:"required"`
	PlanType string            `json:"plan_type" validate:"required"`
	Role     enums.AccountRole `json:"role" validate:"required,oneof=artist label"`
}

// Catalog is the read-only price → plan mapping loaded at startup.
type Catalog struct {
	byPrice     map[string]Entry
	defaults    map[enums.AccountRole]string
	known       map[string]struct{}
	defaultRole enums.AccountRole
}

var validate = validator.New()

// Load parses the plan mapping from configuration.
func Load(cfg config.PlansConfig) (*Catalog, error) {
	if strings.TrimSpace(cfg.MappingJSON) == "" {
		return nil, fmt.Errorf("%s is required", config.EnvPlanMapping)
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(cfg.MappingJSON), &entries); err != nil {
		return nil, fmt.Errorf("decode plan mapping: %w", err)
	}
	return NewCatalog(entries, cfg.DefaultPlans, cfg.DefaultRole)
}

// NewCatalog validates entries and the role → default plan table.
func NewCatalog(entries []Entry, defaultPlans map[string]string, defaultRole string) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("plan mapping must contain at least one price")
	}

	for i := range entries {
		entries[i].PriceID = strings.TrimSpace(entries[i].PriceID)
		entries[i].PlanType = strings.TrimSpace(entries[i].PlanType)
		if err := validate.Struct(entries[i]); err != nil {
			return nil, fmt.Errorf("plan mapping entry %d: %w", i, err)
		}
	}

	if dupes := lo.FindDuplicatesBy(entries, func(e Entry) string { return e.PriceID }); len(dupes) > 0 {
		return nil, fmt.Errorf("plan mapping has duplicate price ids: %s", strings.Join(lo.Map(dupes, func(e Entry, _ int) string { return e.PriceID }), ", "))
	}

	role, err := enums.ParseAccountRole(strings.TrimSpace(defaultRole))
	if err != nil {
		return nil, fmt.Errorf("default role: %w", err)
	}

	defaults := make(map[enums.AccountRole]string, len(defaultPlans))
	for rawRole, plan := range defaultPlans {
		r, err := enums.ParseAccountRole(strings.TrimSpace(rawRole))
		if err != nil {
			return nil, fmt.Errorf("default plans: %w", err)
		}
		plan = strings.TrimSpace(plan)
		if plan == "" {
			return nil, fmt.Errorf("default plan for role %s is empty", r)
		}
		defaults[r] = plan
	}

	roles := lo.Uniq(append(lo.Map(entries, func(e Entry, _ int) enums.AccountRole { return e.Role }), role))
	for _, r := range roles {
		if _, ok := defaults[r]; !ok {
			return nil, fmt.Errorf("no default starter plan configured for role %s", r)
		}
	}

	known := make(map[string]struct{}, len(entries)+len(defaults))
	for _, e := range entries {
		known[e.PlanType] = struct{}{}
	}
	for _, plan := range defaults {
		known[plan] = struct{}{}
	}

	return &Catalog{
		byPrice:     lo.KeyBy(entries, func(e Entry) string { return e.PriceID }),
		defaults:    defaults,
		known:       known,
		defaultRole: role,
	}, nil
}

// Resolve returns the plan entry for priceID.
func (c *Catalog) Resolve(priceID string) (Entry, bool) {
	entry, ok := c.byPrice[priceID]
	return entry, ok
}

// DefaultPlan returns the starter plan accounts of role fall back to on cancellation.
func (c *Catalog) DefaultPlan(role enums.AccountRole) (string, bool) {
	plan, ok := c.defaults[role]
	return plan, ok
}

// DefaultRole is used when neither the account nor the canceled price carries a role.
func (c *Catalog) DefaultRole() enums.AccountRole {
	return c.defaultRole
}

// IsKnownPlan reports whether planType is a mapped or default plan.
func (c *Catalog) IsKnownPlan(planType string) bool {
	_, ok := c.known[planType]
	return ok
}

// Entries returns the mapping sorted by price id.
func (c *Catalog) Entries() []Entry {
	entries := lo.Values(c.byPrice)
	sort.Slice(entries, func(i, j int) bool { return entries[i].PriceID < entries[j].PriceID })
	return entries
}

// Package taxonomy holds the fixed error catalog and the recovery policy derived from it.
//
// This package contains:
//   - Entry: static description of one error code
//   - the catalog of 37 codes plus the skill-level aliases, checked once at startup
//   - Resolve / Classify: recovery policy lookup and status-code inference
//   - ErrorRecord: the error value returned by failed operations and its envelope
//
// The catalog is built in init and never mutated afterwards. A malformed table
// panics at startup.
package taxonomy

import (
	"fmt"
	"sort"
	"strings"
)

// Code is a stable taxonomy key.
type Code string

// Category groups codes by naming prefix.
type Category string

const (
	CategoryExternal   Category = "EXTERNAL"
	CategoryValidation Category = "VALIDATION"
	CategoryResource   Category = "RESOURCE"
	CategoryState      Category = "STATE"
	CategorySecurity   Category = "SECURITY"
	CategoryPlatform   Category = "PLATFORM"
	CategoryFinancial  Category = "FINANCIAL"
	CategoryNetwork    Category = "NETWORK"
	CategoryUnknown    Category = "UNKNOWN"
)

// Strategy names a recovery policy.
type Strategy string

const (
	StrategyRetryWithBackoff     Strategy = "RETRY_WITH_BACKOFF"
	StrategyBackoffWithJitter    Strategy = "EXPONENTIAL_BACKOFF_WITH_JITTER"
	StrategyReject               Strategy = "REJECT"
	StrategyRefreshCredentials   Strategy = "REFRESH_CREDENTIALS"
	StrategyCheckPermissions     Strategy = "CHECK_PERMISSIONS"
	StrategyClampAndWarn         Strategy = "CLAMP_AND_WARN"
	StrategyCoerceOrReject       Strategy = "COERCE_OR_REJECT"
	StrategyReturnExisting       Strategy = "RETURN_EXISTING"
	StrategyRefreshAndRetry      Strategy = "REFRESH_AND_RETRY"
	StrategyEscalate             Strategy = "ESCALATE"
	StrategyRequestNewToken      Strategy = "REQUEST_NEW_TOKEN"
	StrategyRequestFreshApproval Strategy = "REQUEST_FRESH_APPROVAL"
	StrategyCheckRBAC            Strategy = "CHECK_RBAC"
	StrategyHaltAndEscalate      Strategy = "HALT_AND_ESCALATE"
	StrategyAlertAndRevise       Strategy = "ALERT_AND_REVISE"
	StrategyRejectAndEscalate    Strategy = "REJECT_AND_ESCALATE"
	StrategyUseCachedRate        Strategy = "USE_CACHED_RATE"
	StrategyFallbackModel        Strategy = "FALLBACK_MODEL"
	StrategyFallbackResource     Strategy = "FALLBACK_RESOURCE"
	StrategyReturnPartial        Strategy = "RETURN_PARTIAL"
)

// Unbounded is the MaxRetries value meaning "retry until the caller gives up".
const Unbounded = -1

// Entry is one row of the catalog.
type Entry struct {
	Code       Code     `json:"code"`
	Category   Category `json:"category"`
	Status     int      `json:"status"`
	RetrySafe  bool     `json:"retrySafe"`
	MaxRetries int      `json:"maxRetries"`
	Strategy   Strategy `json:"strategy"`
	Message    string   `json:"message"`

	// Base is set on skill-level aliases and names the catalog code they refine.
	Base Code `json:"base,omitempty"`
}

// Jitter reports whether backoff delays for this code get random jitter.
func (e Entry) Jitter() bool {
	return e.Strategy == StrategyBackoffWithJitter
}

// Escalates reports whether the strategy asks for human escalation.
func (e Entry) Escalates() bool {
	switch e.Strategy {
	case StrategyEscalate, StrategyHaltAndEscalate, StrategyRejectAndEscalate:
		return true
	}
	return false
}

// Critical reports whether the code must halt the pipeline.
func (e Entry) Critical() bool {
	return e.Strategy == StrategyHaltAndEscalate || e.Strategy == StrategyRejectAndEscalate
}

// HasFallback reports whether a non-retryable failure may switch target once.
func (e Entry) HasFallback() bool {
	return e.Strategy == StrategyFallbackModel || e.Strategy == StrategyFallbackResource
}

// prefixes maps a naming prefix to its category.
var prefixes = map[string]Category{
	"EXT_":   CategoryExternal,
	"VAL_":   CategoryValidation,
	"RES_":   CategoryResource,
	"STATE_": CategoryState,
	"SEC_":   CategorySecurity,
	"PLAT_":  CategoryPlatform,
	"FIN_":   CategoryFinancial,
	"NET_":   CategoryNetwork,
}

// PrefixCategory returns the category implied by the code's prefix.
func PrefixCategory(code Code) (Category, bool) {
	for p, c := range prefixes {
		if strings.HasPrefix(string(code), p) {
			return c, true
		}
	}
	return "", false
}

var (
	catalog map[Code]Entry
	aliases map[Code]Entry
)

func init() {
	c, a, err := build(catalogEntries, aliasEntries)
	if err != nil {
		panic(fmt.Sprintf("taxonomy: %v", err))
	}
	catalog, aliases = c, a
}

// build indexes the tables and runs the structural self-check.
func build(entries, skillEntries []Entry) (map[Code]Entry, map[Code]Entry, error) {
	c := make(map[Code]Entry, len(entries))
	for _, e := range entries {
		if _, dup := c[e.Code]; dup {
			return nil, nil, fmt.Errorf("duplicate code %s", e.Code)
		}
		if err := checkEntry(e); err != nil {
			return nil, nil, err
		}
		cat, ok := PrefixCategory(e.Code)
		if !ok {
			return nil, nil, fmt.Errorf("%s: no known category prefix", e.Code)
		}
		if cat != e.Category {
			return nil, nil, fmt.Errorf("%s: category %s does not match prefix category %s", e.Code, e.Category, cat)
		}
		if e.Base != "" {
			return nil, nil, fmt.Errorf("%s: catalog entries cannot have a base code", e.Code)
		}
		c[e.Code] = e
	}

	a := make(map[Code]Entry, len(skillEntries))
	for _, e := range skillEntries {
		if _, dup := c[e.Code]; dup {
			return nil, nil, fmt.Errorf("alias %s shadows a catalog code", e.Code)
		}
		if _, dup := a[e.Code]; dup {
			return nil, nil, fmt.Errorf("duplicate alias %s", e.Code)
		}
		base, ok := c[e.Base]
		if !ok {
			return nil, nil, fmt.Errorf("alias %s: unknown base code %q", e.Code, e.Base)
		}
		e.Category = base.Category
		if err := checkEntry(e); err != nil {
			return nil, nil, err
		}
		a[e.Code] = e
	}
	return c, a, nil
}

func checkEntry(e Entry) error {
	switch {
	case e.Code == "":
		return fmt.Errorf("entry with empty code")
	case e.Status < 400 || e.Status > 599:
		return fmt.Errorf("%s: status %d outside 400..599", e.Code, e.Status)
	case e.Strategy == "":
		return fmt.Errorf("%s: missing recovery strategy", e.Code)
	case e.MaxRetries < Unbounded:
		return fmt.Errorf("%s: maxRetries %d below %d", e.Code, e.MaxRetries, Unbounded)
	case e.RetrySafe && e.MaxRetries == 0:
		return fmt.Errorf("%s: retry-safe with maxRetries 0", e.Code)
	case !e.RetrySafe && e.MaxRetries != 0:
		return fmt.Errorf("%s: not retry-safe but maxRetries %d", e.Code, e.MaxRetries)
	case e.MaxRetries == Unbounded && e.Code != StateConflict:
		return fmt.Errorf("%s: only %s may retry without bound", e.Code, StateConflict)
	case (e.Category == CategorySecurity || e.Category == CategoryValidation) && e.RetrySafe:
		return fmt.Errorf("%s: %s codes must not be retry-safe", e.Code, e.Category)
	}
	return nil
}

// Lookup returns the entry for a catalog code or skill-level alias.
func Lookup(code Code) (Entry, bool) {
	if e, ok := catalog[code]; ok {
		return e, true
	}
	e, ok := aliases[code]
	return e, ok
}

// MustLookup is Lookup for codes known at compile time.
func MustLookup(code Code) Entry {
	e, ok := Lookup(code)
	if !ok {
		panic(fmt.Sprintf("taxonomy: unknown code %s", code))
	}
	return e
}

// All returns the catalog entries sorted by category then code.
func All() []Entry {
	out := make([]Entry, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

// Aliases returns the skill-level entries sorted by code.
func Aliases() []Entry {
	out := make([]Entry, 0, len(aliases))
	for _, e := range aliases {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Category != es[j].Category {
			return es[i].Category < es[j].Category
		}
		return es[i].Code < es[j].Code
	})
}

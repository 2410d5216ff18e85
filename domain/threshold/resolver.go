package threshold

import (
	"sort"
	"strings"

	"maintflow/bizerror"
	"maintflow/domain"
)

type Boundary string

const (
	// UpperInclusive places an amount equal to a boundary in the lower tier: (lower, upper].
	UpperInclusive Boundary = "upper_inclusive"
	// LowerInclusive places an amount equal to a boundary in the upper tier: [lower, upper).
	LowerInclusive Boundary = "lower_inclusive"
)

type Severity string

const (
	SeverityNone     Severity = ""
	SeverityNormal   Severity = "NORMAL"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Range is one escalation tier. A nil Upper means unbounded.
type Range struct {
	Lower      domain.Amount      `json:"lower" mapstructure:"lower"`
	Upper      *domain.Amount     `json:"upper,omitempty" mapstructure:"upper"`
	Severity   Severity           `json:"severity" mapstructure:"severity"`
	Recipients []domain.Recipient `json:"recipients" mapstructure:"recipients"`
}

// Table lists the recipients notified when an entity of Kind reaches State.
type Table struct {
	Kind     domain.Kind  `json:"kind" mapstructure:"kind"`
	State    domain.State `json:"state" mapstructure:"state"`
	Boundary Boundary     `json:"boundary" mapstructure:"boundary"`
	Ranges   []Range      `json:"ranges" mapstructure:"ranges"`
}

type Resolution struct {
	Tier       int                `json:"tier"`
	Severity   Severity           `json:"severity"`
	Recipients []domain.Recipient `json:"recipients"`
}

func (r *Resolution) Empty() bool {
	return len(r.Recipients) == 0
}

type ResolverTraits interface {
	Resolve(kind domain.Kind, amount domain.Amount, reached domain.State) (*Resolution, error)
	HasTable(kind domain.Kind, reached domain.State) bool
}

type tableKey struct {
	kind  domain.Kind
	state domain.State
}

// Resolver is immutable after construction.
type Resolver struct {
	tables map[tableKey]*Table
}

func NewResolver(tables ...Table) (*Resolver, error) {
	r := &Resolver{tables: map[tableKey]*Table{}}
	for i := range tables {
		t := tables[i]
		if err := validateTable(&t); err != nil {
			return nil, err
		}
		key := tableKey{kind: t.Kind, state: t.State}
		if _, dup := r.tables[key]; dup {
			return nil, bizerror.Configurationf("table %s/%s declared twice", t.Kind, t.State)
		}
		r.tables[key] = &t
	}
	return r, nil
}

func validateTable(t *Table) error {
	if !t.Kind.Valid() {
		return bizerror.Configurationf("table for unknown kind %q", t.Kind)
	}
	if t.State == "" {
		return bizerror.Configurationf("table %s has no state", t.Kind)
	}
	if t.Boundary != UpperInclusive && t.Boundary != LowerInclusive {
		return bizerror.Configurationf("table %s/%s has invalid boundary %q", t.Kind, t.State, t.Boundary)
	}
	if len(t.Ranges) == 0 {
		return bizerror.Configurationf("table %s/%s has no ranges", t.Kind, t.State)
	}
	if t.Ranges[0].Lower != 0 {
		return bizerror.Configurationf("table %s/%s does not start at 0", t.Kind, t.State)
	}
	seen := map[string]bool{}
	for i, rg := range t.Ranges {
		last := i == len(t.Ranges)-1
		if last && rg.Upper != nil {
			return bizerror.Configurationf("table %s/%s does not extend to infinity", t.Kind, t.State)
		}
		if !last {
			if rg.Upper == nil {
				return bizerror.Configurationf("table %s/%s tier %d is unbounded but not last", t.Kind, t.State, i+1)
			}
			if *rg.Upper <= rg.Lower {
				return bizerror.Configurationf("table %s/%s tier %d has empty range", t.Kind, t.State, i+1)
			}
			next := t.Ranges[i+1].Lower
			if next > *rg.Upper {
				return bizerror.Configurationf("table %s/%s has a gap after tier %d", t.Kind, t.State, i+1)
			}
			if next < *rg.Upper {
				return bizerror.Configurationf("table %s/%s tier %d overlaps tier %d", t.Kind, t.State, i+1, i+2)
			}
		}
		added := false
		for _, rcpt := range rg.Recipients {
			if strings.TrimSpace(rcpt.Email) == "" {
				return bizerror.Configurationf("table %s/%s tier %d has recipient without email", t.Kind, t.State, i+1)
			}
			key := strings.ToLower(strings.TrimSpace(rcpt.Email))
			if !seen[key] {
				seen[key] = true
				added = true
			}
		}
		if !added {
			return bizerror.Configurationf("table %s/%s tier %d adds no recipient", t.Kind, t.State, i+1)
		}
	}
	return nil
}

func (r *Resolver) HasTable(kind domain.Kind, reached domain.State) bool {
	_, ok := r.tables[tableKey{kind: kind, state: reached}]
	return ok
}

// Tables returns the configured tables, used for previews and config checks.
func (r *Resolver) Tables() []Table {
	out := make([]Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].State < out[j].State
	})
	return out
}

// Resolve returns the recipients of the tier containing amount together with those of every lower tier.
// A state without table is not notification-worthy and resolves to an empty result.
func (r *Resolver) Resolve(kind domain.Kind, amount domain.Amount, reached domain.State) (*Resolution, error) {
	if amount < 0 {
		return nil, bizerror.ErrInvalidAmount
	}
	t, ok := r.tables[tableKey{kind: kind, state: reached}]
	if !ok {
		return &Resolution{Recipients: []domain.Recipient{}}, nil
	}

	tier := -1
	for i, rg := range t.Ranges {
		if t.contains(i, rg, amount) {
			tier = i
			break
		}
	}
	if tier < 0 {
		return nil, bizerror.Configurationf("no tier of %s/%s covers amount %d", kind, reached, amount)
	}

	seen := map[string]bool{}
	recipients := []domain.Recipient{}
	for _, rg := range t.Ranges[:tier+1] {
		for _, rcpt := range rg.Recipients {
			key := strings.ToLower(strings.TrimSpace(rcpt.Email))
			if seen[key] {
				continue
			}
			seen[key] = true
			recipients = append(recipients, rcpt)
		}
	}
	return &Resolution{Tier: tier + 1, Severity: t.Ranges[tier].Severity, Recipients: recipients}, nil
}

func (t *Table) contains(i int, rg Range, amount domain.Amount) bool {
	if t.Boundary == LowerInclusive {
		return amount >= rg.Lower && (rg.Upper == nil || amount < *rg.Upper)
	}
	above := amount > rg.Lower || (i == 0 && amount == rg.Lower)
	return above && (rg.Upper == nil || amount <= *rg.Upper)
}

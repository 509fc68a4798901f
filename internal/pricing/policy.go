package pricing

import (
	"errors"
	"time"

	"github.com/iliyamo/wellness-admin/internal/model"
)

var (
	ErrCountNotEditable = errors.New("pricing: usable count is fixed for period tickets")
	ErrUnknownLimitType = errors.New("pricing: unknown limit type")
	ErrLimitCount       = errors.New("pricing: limit count must be at least 1 for WEEK or MONTH")
	ErrNegativeUsage    = errors.New("pricing: usable count and days must not be negative")
)

// UsagePolicy is the usable-count / validity / limit triple stamped on an
// issued ticket.
type UsagePolicy struct {
	UsableCnt  int             `json:"usable_cnt"`
	UsableDays int             `json:"usable_days"`
	LimitType  model.LimitType `json:"limit_type"`
	LimitCnt   int             `json:"limit_cnt"`
}

// PolicyOverride carries the operator's edits; nil fields inherit.
type PolicyOverride struct {
	UsableCnt  *int
	UsableDays *int
	LimitType  *model.LimitType
	LimitCnt   *int
}

// DefaultPolicy copies the product's policy values.
func DefaultPolicy(p model.TicketProduct) UsagePolicy {
	lt := p.LimitType
	if lt == "" {
		lt = model.LimitNone
	}
	pol := UsagePolicy{
		UsableCnt:  p.UsableCnt,
		UsableDays: p.UsableDays,
		LimitType:  lt,
		LimitCnt:   p.LimitCnt,
	}
	if lt == model.LimitNone {
		pol.LimitCnt = 0
	}
	return pol
}

// SelectPolicy applies o on top of the product defaults.
func SelectPolicy(p model.TicketProduct, o PolicyOverride) (UsagePolicy, error) {
	pol := DefaultPolicy(p)
	if o.UsableCnt != nil {
		if p.Kind != model.TicketKindCount {
			return UsagePolicy{}, ErrCountNotEditable
		}
		pol.UsableCnt = *o.UsableCnt
	}
	if o.UsableDays != nil {
		pol.UsableDays = *o.UsableDays
	}
	if o.LimitType != nil {
		pol.LimitType = *o.LimitType
	}
	if o.LimitCnt != nil {
		pol.LimitCnt = *o.LimitCnt
	}
	return pol.normalize()
}

// Validate checks the policy invariants without changing it.
func (p UsagePolicy) Validate() error {
	_, err := p.normalize()
	return err
}

func (p UsagePolicy) normalize() (UsagePolicy, error) {
	if p.UsableCnt < 0 || p.UsableDays < 0 {
		return UsagePolicy{}, ErrNegativeUsage
	}
	if !p.LimitType.Valid() {
		return UsagePolicy{}, ErrUnknownLimitType
	}
	if p.LimitType == model.LimitNone {
		p.LimitCnt = 0
		return p, nil
	}
	if p.LimitCnt < 1 {
		return UsagePolicy{}, ErrLimitCount
	}
	return p, nil
}

// Period is an inclusive usable date range. Either end may be unset while
// the operator is still editing.
type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Complete reports whether both ends are set.
func (p Period) Complete() bool { return p.Start != nil && p.End != nil }

// DefaultPeriod is [today, today + usableDays] at midnight in today's location.
func DefaultPeriod(p model.TicketProduct, today time.Time) Period {
	start := model.StartOfDay(today)
	end := start.AddDate(0, 0, p.UsableDays)
	return Period{Start: &start, End: &end}
}

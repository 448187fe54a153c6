package eligibility

import (
	"errors"
	"fmt"
)

// Action is what a tier does with a submitted interest rate.
type Action string

const (
	ActionApprove   Action = "approve"
	ActionRateFloor Action = "rate_floor"
	ActionReject    Action = "reject"
)

func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionRateFloor || a == ActionReject
}

// Tier is one row of the approval table. A tier matches every score strictly
// greater than Above; tiers are evaluated in order and the first match wins.
type Tier struct {
	Name          string  `mapstructure:"name"`
	Above         int     `mapstructure:"above"`
	Action        Action  `mapstructure:"action"`
	RateFloor     float64 `mapstructure:"rate_floor"`
	CorrectedRate float64 `mapstructure:"corrected_rate"`
}

func (t Tier) Matches(score int) bool { return score > t.Above }

// TierOutcome is the result of applying a tier to a submitted rate.
type TierOutcome struct {
	Approved      bool
	CorrectedRate float64
	RateCorrected bool
}

// Apply approves or rejects the submitted rate. A rate_floor tier approves only
// a rate above its floor; otherwise it rejects and reports CorrectedRate.
func (t Tier) Apply(rate float64) TierOutcome {
	switch t.Action {
	case ActionApprove:
		return TierOutcome{Approved: true, CorrectedRate: rate}
	case ActionRateFloor:
		if rate > t.RateFloor {
			return TierOutcome{Approved: true, CorrectedRate: rate}
		}
		return TierOutcome{CorrectedRate: t.CorrectedRate, RateCorrected: true}
	default:
		return TierOutcome{CorrectedRate: rate}
	}
}

// Policy holds every tunable of the scoring and approval rules.
type Policy struct {
	PaidOnTimeWeight   int     `mapstructure:"paid_on_time_weight"`
	LoanCountWeight    int     `mapstructure:"loan_count_weight"`
	RecentLoanWeight   int     `mapstructure:"recent_loan_weight"`
	VolumeUnit         int64   `mapstructure:"volume_unit"`
	MaxScore           int     `mapstructure:"max_score"`
	AffordabilityRatio float64 `mapstructure:"affordability_ratio"`
	LimitMultiplier    int64   `mapstructure:"limit_multiplier"`
	LimitRounding      int64   `mapstructure:"limit_rounding"`
	Tiers              []Tier  `mapstructure:"tiers"`
}

func DefaultPolicy() Policy {
	return Policy{
		PaidOnTimeWeight:   5,
		LoanCountWeight:    10,
		RecentLoanWeight:   10,
		VolumeUnit:         100_000,
		MaxScore:           100,
		AffordabilityRatio: 0.5,
		LimitMultiplier:    36,
		LimitRounding:      100_000,
		Tiers: []Tier{
			{Name: "prime", Above: 50, Action: ActionApprove},
			{Name: "standard", Above: 30, Action: ActionRateFloor, RateFloor: 12, CorrectedRate: 13.0},
			{Name: "subprime", Above: 10, Action: ActionRateFloor, RateFloor: 16, CorrectedRate: 17.0},
			{Name: "declined", Above: -1, Action: ActionReject},
		},
	}
}

var ErrInvalidPolicy = errors.New("invalid policy")

func (p Policy) Validate() error {
	if p.PaidOnTimeWeight < 0 || p.LoanCountWeight < 0 || p.RecentLoanWeight < 0 {
		return fmt.Errorf("%w: negative score weight", ErrInvalidPolicy)
	}
	if p.VolumeUnit <= 0 {
		return fmt.Errorf("%w: volume_unit must be positive", ErrInvalidPolicy)
	}
	if p.MaxScore <= 0 {
		return fmt.Errorf("%w: max_score must be positive", ErrInvalidPolicy)
	}
	if p.AffordabilityRatio <= 0 || p.AffordabilityRatio > 1 {
		return fmt.Errorf("%w: affordability_ratio must be in (0, 1]", ErrInvalidPolicy)
	}
	if p.LimitMultiplier <= 0 || p.LimitRounding <= 0 {
		return fmt.Errorf("%w: limit_multiplier and limit_rounding must be positive", ErrInvalidPolicy)
	}
	if len(p.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidPolicy)
	}
	for i, t := range p.Tiers {
		if t.Name == "" {
			return fmt.Errorf("%w: tier %d has no name", ErrInvalidPolicy, i)
		}
		if !t.Action.Valid() {
			return fmt.Errorf("%w: tier %q has unknown action %q", ErrInvalidPolicy, t.Name, t.Action)
		}
		if t.Action == ActionRateFloor && t.CorrectedRate <= 0 {
			return fmt.Errorf("%w: tier %q needs a corrected_rate", ErrInvalidPolicy, t.Name)
		}
		if i > 0 && t.Above >= p.Tiers[i-1].Above {
			return fmt.Errorf("%w: tier %q is not below tier %q", ErrInvalidPolicy, t.Name, p.Tiers[i-1].Name)
		}
	}
	if last := p.Tiers[len(p.Tiers)-1]; last.Above >= 0 {
		return fmt.Errorf("%w: tier %q leaves score 0 unmatched", ErrInvalidPolicy, last.Name)
	}
	return nil
}

// TierFor returns the first tier matching score. Validate guarantees a match
// for every score >= 0.
func (p Policy) TierFor(score int) Tier {
	for _, t := range p.Tiers {
		if t.Matches(score) {
			return t
		}
	}
	return p.Tiers[len(p.Tiers)-1]
}

func (p Policy) clone() Policy {
	c := p
	c.Tiers = append([]Tier(nil), p.Tiers...)
	return c
}

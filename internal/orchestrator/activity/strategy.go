package activity

import (
	"github.com/stakeops/orchestrator/internal/core/domain"
)

// Strategy rolls the outcomes of an activity's root executions up into one
// activity status.
type Strategy interface {
	Aggregate(outcomes []Outcome) domain.ActivityStatus
}

// allOrNothing fails the activity if any root execution failed. Stake,
// unstake and claim all roll up this way; the table exists so future types
// can differ.
type allOrNothing struct{}

func (allOrNothing) Aggregate(outcomes []Outcome) domain.ActivityStatus {
	for _, o := range outcomes {
		if o.Failed() {
			return domain.ActivityStatusFailure
		}
	}
	return domain.ActivityStatusSuccess
}

// strategies maps activity types to their aggregation strategy. An unknown
// type is a deliberate no-op, not a fault.
var strategies = map[domain.ActivityType]Strategy{
	domain.ActivityTypeStake:   allOrNothing{},
	domain.ActivityTypeUnstake: allOrNothing{},
	domain.ActivityTypeClaim:   allOrNothing{},
}

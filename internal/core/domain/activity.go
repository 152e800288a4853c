package domain

import (
	"time"
)

// Activity groups the transactions of one logical user action, e.g. a stake
// request that fans out into a funding transaction plus the stake itself.
type Activity struct {
	ID        uint64         `json:"id"`
	Type      ActivityType   `json:"type"`
	Status    ActivityStatus `json:"status"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type ActivityStatus string

const (
	ActivityStatusPending ActivityStatus = "pending"
	ActivityStatusSuccess ActivityStatus = "success"
	ActivityStatusFailure ActivityStatus = "failure"
)

type ActivityType string

const (
	ActivityTypeStake   ActivityType = "stake"
	ActivityTypeUnstake ActivityType = "unstake"
	ActivityTypeClaim   ActivityType = "claim"
)

// ActivityPatch is a partial update applied to a stored activity.
type ActivityPatch struct {
	Status *ActivityStatus
}

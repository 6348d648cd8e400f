package entity

import (
	"time"

	"github.com/google/uuid"
)

// PlanTier is the billing plan an account is on.
type PlanTier string

const (
	PlanTrial PlanTier = "trial"
	PlanPro   PlanTier = "pro"
)

// SubscriptionStatus mirrors the billing provider's subscription state.
type SubscriptionStatus string

const (
	SubActive            SubscriptionStatus = "active"
	SubTrialing          SubscriptionStatus = "trialing"
	SubIncomplete        SubscriptionStatus = "incomplete"
	SubIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubPastDue           SubscriptionStatus = "past_due"
	SubPaused            SubscriptionStatus = "paused"
	SubCanceled          SubscriptionStatus = "canceled"
)

// Account owns tables and carries the entitlement fields the quota gate
// reads before an extraction is allowed to start.
type Account struct {
	ID                 uuid.UUID          `json:"id"`
	Email              string             `json:"email"`
	PlanTier           PlanTier           `json:"plan_tier"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty"`
	DocsThisMonth      int                `json:"docs_this_month"`
	DocsTotal          int                `json:"docs_total"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

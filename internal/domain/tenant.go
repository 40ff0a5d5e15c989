package domain

import (
	"fmt"
	"strings"
	"time"
)

// Plan represents a tenant subscription tier.
type Plan string

const (
	PlanFree  Plan = "FREE"
	PlanPro   Plan = "PRO"
	PlanElite Plan = "ELITE"
)

// LowestPlan is the tier expired tenants are downgraded to.
const LowestPlan = PlanFree

func (p Plan) String() string { return string(p) }

func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanPro, PlanElite:
		return true
	}
	return false
}

// Rank orders plans for upgrade/downgrade classification.
func (p Plan) Rank() int {
	switch p {
	case PlanFree:
		return 0
	case PlanPro:
		return 1
	case PlanElite:
		return 2
	}
	return -1
}

func ParsePlanFromString(s string) (Plan, error) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: invalid plan %q", ErrValidation, s)
	}
	return p, nil
}

// SubscriptionStatus represents the entitlement state of a tenant.
type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "ACTIVE"
	SubscriptionExpired SubscriptionStatus = "EXPIRED"
)

func (s SubscriptionStatus) String() string { return string(s) }

func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionExpired:
		return true
	}
	return false
}

// Tenant is an isolated organization with its own contacts, credits and campaigns.
type Tenant struct {
	ID                    string             `gorm:"type:uuid;primaryKey"`
	Name                  string             `gorm:"type:varchar(255);not null"`
	Plan                  Plan               `gorm:"type:varchar(20);not null"`
	SubscriptionStatus    SubscriptionStatus `gorm:"type:varchar(20);not null"`
	EmailCredits          int64              `gorm:"not null;default:0"`
	SMSCredits            int64              `gorm:"not null;default:0;column:sms_credits"`
	SubscriptionStartsAt  *time.Time
	SubscriptionExpiresAt *time.Time
	LastExpiryNoticeAt    *time.Time
	AutoRenew             bool    `gorm:"not null;default:false"`
	RecurringPaymentRef   *string `gorm:"type:varchar(255)"`
	AdminEmails           string  `gorm:"type:text;not null;default:''"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Credits returns the prepaid balance for a single-leg channel.
func (t *Tenant) Credits(channel Channel) (int64, error) {
	switch channel {
	case ChannelEmail:
		return t.EmailCredits, nil
	case ChannelSMS:
		return t.SMSCredits, nil
	}
	return 0, fmt.Errorf("%w: channel %q has no single balance", ErrValidation, channel)
}

// ExpiresWithin reports whether the subscription has an expiry inside the window.
func (t *Tenant) ExpiresWithin(now time.Time, window time.Duration) bool {
	if t.SubscriptionExpiresAt == nil {
		return false
	}
	expiry := *t.SubscriptionExpiresAt
	return expiry.After(now) && !expiry.After(now.Add(window))
}

// IsPastExpiry reports whether the subscription expiry is behind now.
func (t *Tenant) IsPastExpiry(now time.Time) bool {
	return t.SubscriptionExpiresAt != nil && t.SubscriptionExpiresAt.Before(now)
}

// AdminEmailList splits the stored comma-separated admin addresses.
func (t *Tenant) AdminEmailList() []string {
	if strings.TrimSpace(t.AdminEmails) == "" {
		return nil
	}

	parts := strings.Split(t.AdminEmails, ",")
	emails := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			emails = append(emails, trimmed)
		}
	}
	return emails
}

// Actor identifies who requested an operation, for permission checks and audit.
type Actor struct {
	UserID   string
	TenantID string
	Role     Role
	Email    string
}

// Role represents an actor's role within a tenant.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

func ParseRoleFromString(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: invalid role %q", ErrValidation, s)
	}
	return r, nil
}

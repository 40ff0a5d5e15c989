package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPlanRankOrdering(t *testing.T) {
	t.Parallel()

	if !(PlanFree.Rank() < PlanPro.Rank() && PlanPro.Rank() < PlanElite.Rank()) {
		t.Fatalf("plan ranks out of order: FREE=%d PRO=%d ELITE=%d",
			PlanFree.Rank(), PlanPro.Rank(), PlanElite.Rank())
	}
}

func TestTenantCredits(t *testing.T) {
	t.Parallel()

	tenant := &Tenant{EmailCredits: 10, SMSCredits: 4}

	if got, err := tenant.Credits(ChannelEmail); err != nil || got != 10 {
		t.Fatalf("Credits(EMAIL) = %d, %v", got, err)
	}
	if got, err := tenant.Credits(ChannelSMS); err != nil || got != 4 {
		t.Fatalf("Credits(SMS) = %d, %v", got, err)
	}
	if _, err := tenant.Credits(ChannelBoth); !errors.Is(err, ErrValidation) {
		t.Fatalf("Credits(BOTH) error = %v, want ErrValidation", err)
	}
}

func TestTenantExpiresWithin(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	window := 7 * 24 * time.Hour

	tests := []struct {
		name   string
		expiry *time.Time
		want   bool
	}{
		{name: "no expiry", expiry: nil, want: false},
		{name: "inside window", expiry: timePtr(now.Add(3 * 24 * time.Hour)), want: true},
		{name: "exactly at window edge", expiry: timePtr(now.Add(window)), want: true},
		{name: "beyond window", expiry: timePtr(now.Add(8 * 24 * time.Hour)), want: false},
		{name: "already past", expiry: timePtr(now.Add(-time.Hour)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tenant := &Tenant{SubscriptionExpiresAt: tt.expiry}
			if got := tenant.ExpiresWithin(now, window); got != tt.want {
				t.Fatalf("ExpiresWithin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTenantIsPastExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	if (&Tenant{}).IsPastExpiry(now) {
		t.Fatal("tenant without expiry is never past expiry")
	}
	if !(&Tenant{SubscriptionExpiresAt: timePtr(now.Add(-time.Minute))}).IsPastExpiry(now) {
		t.Fatal("expired tenant not detected")
	}
	if (&Tenant{SubscriptionExpiresAt: timePtr(now.Add(time.Minute))}).IsPastExpiry(now) {
		t.Fatal("future expiry flagged as past")
	}
}

func TestTenantAdminEmailList(t *testing.T) {
	t.Parallel()

	tenant := &Tenant{AdminEmails: " a@x.org ,, b@x.org "}
	got := tenant.AdminEmailList()
	if len(got) != 2 || got[0] != "a@x.org" || got[1] != "b@x.org" {
		t.Fatalf("AdminEmailList() = %v", got)
	}

	if got := (&Tenant{AdminEmails: "  "}).AdminEmailList(); got != nil {
		t.Fatalf("AdminEmailList() on blank = %v, want nil", got)
	}
}

func timePtr(t time.Time) *time.Time { return &t }

package domain

import "testing"

func strPtr(s string) *string { return &s }

func consentedContact(id string) Contact {
	return Contact{
		ID:           id,
		TenantID:     "tenant-1",
		Email:        strPtr(id + "@example.org"),
		Phone:        strPtr("+15550001234"),
		EmailConsent: true,
		SMSConsent:   true,
		Status:       ContactActive,
	}
}

func TestContactCanReceive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Contact)
		leg    Channel
		want   bool
	}{
		{name: "email ok", mutate: func(c *Contact) {}, leg: ChannelEmail, want: true},
		{name: "sms ok", mutate: func(c *Contact) {}, leg: ChannelSMS, want: true},
		{name: "no email consent", mutate: func(c *Contact) { c.EmailConsent = false }, leg: ChannelEmail, want: false},
		{name: "no sms consent", mutate: func(c *Contact) { c.SMSConsent = false }, leg: ChannelSMS, want: false},
		{name: "missing email address", mutate: func(c *Contact) { c.Email = nil }, leg: ChannelEmail, want: false},
		{name: "blank phone", mutate: func(c *Contact) { c.Phone = strPtr("  ") }, leg: ChannelSMS, want: false},
		{name: "inactive record", mutate: func(c *Contact) { c.Status = ContactInactive }, leg: ChannelEmail, want: false},
		{name: "anonymized record", mutate: func(c *Contact) { c.Status = ContactAnonymized }, leg: ChannelSMS, want: false},
		{name: "both is not a leg", mutate: func(c *Contact) {}, leg: ChannelBoth, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := consentedContact("contact-1")
			tt.mutate(&c)
			if got := c.CanReceive(tt.leg); got != tt.want {
				t.Fatalf("CanReceive(%s) = %v, want %v", tt.leg, got, tt.want)
			}
		})
	}
}

func TestContactHasTag(t *testing.T) {
	t.Parallel()

	c := Contact{Tags: "monthly-donor, Gala 2026 ,newsletter"}

	if !c.HasTag("monthly-donor") {
		t.Fatal("expected exact tag match")
	}
	if !c.HasTag("GALA 2026") {
		t.Fatal("tag match should be case-insensitive and trimmed")
	}
	if c.HasTag("donor") {
		t.Fatal("substring must not match")
	}
	if c.HasTag("") {
		t.Fatal("empty tag never matches")
	}
}

func TestSplitByChannelBoth(t *testing.T) {
	t.Parallel()

	emailOnly := consentedContact("email-only")
	emailOnly.SMSConsent = false

	smsOnly := consentedContact("sms-only")
	smsOnly.EmailConsent = false

	dual := consentedContact("dual")

	neither := consentedContact("neither")
	neither.EmailConsent = false
	neither.SMSConsent = false

	perLeg, union := SplitByChannel([]Contact{emailOnly, smsOnly, dual, neither}, ChannelBoth)

	if len(perLeg[ChannelEmail]) != 2 {
		t.Fatalf("email leg = %d contacts, want 2", len(perLeg[ChannelEmail]))
	}
	if len(perLeg[ChannelSMS]) != 2 {
		t.Fatalf("sms leg = %d contacts, want 2", len(perLeg[ChannelSMS]))
	}

	// Each addressable contact counts once even when on both legs.
	if union != 3 {
		t.Fatalf("union = %d, want 3", union)
	}

	for _, c := range perLeg[ChannelEmail] {
		if !c.EmailConsent {
			t.Fatalf("contact %s on email leg without consent", c.ID)
		}
	}
	for _, c := range perLeg[ChannelSMS] {
		if !c.SMSConsent {
			t.Fatalf("contact %s on sms leg without consent", c.ID)
		}
	}
}

func TestSplitByChannelSingleLeg(t *testing.T) {
	t.Parallel()

	withConsent := consentedContact("ok")
	without := consentedContact("nope")
	without.EmailConsent = false

	perLeg, union := SplitByChannel([]Contact{withConsent, without}, ChannelEmail)

	if union != 1 || len(perLeg[ChannelEmail]) != 1 {
		t.Fatalf("perLeg = %v union = %d, want only the consented contact", perLeg, union)
	}
	if _, ok := perLeg[ChannelSMS]; ok {
		t.Fatal("sms leg must not exist on an EMAIL campaign")
	}
}

package domain

import (
	"errors"
	"testing"
)

func TestChannelLegs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		channel Channel
		want    []Channel
	}{
		{name: "email", channel: ChannelEmail, want: []Channel{ChannelEmail}},
		{name: "sms", channel: ChannelSMS, want: []Channel{ChannelSMS}},
		{name: "both expands to two legs", channel: ChannelBoth, want: []Channel{ChannelEmail, ChannelSMS}},
		{name: "invalid", channel: Channel("FAX"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.channel.Legs()
			if len(got) != len(tt.want) {
				t.Fatalf("Legs() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Legs() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	if ch, err := ParseChannelFromString(" both "); err != nil || ch != ChannelBoth {
		t.Fatalf("ParseChannelFromString(both) = %v, %v", ch, err)
	}
	if _, err := ParseChannelFromString("pigeon"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseChannelFromString(pigeon) error = %v, want ErrValidation", err)
	}
}

func TestCampaignCanSend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status CampaignStatus
		want   bool
	}{
		{CampaignDraft, true},
		{CampaignScheduled, true},
		{CampaignSending, false},
		{CampaignSent, false},
	}

	for _, tt := range tests {
		c := &Campaign{Status: tt.status}
		if got := c.CanSend(); got != tt.want {
			t.Errorf("CanSend() with %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestCampaignValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Campaign {
		return &Campaign{
			TenantID:     "tenant-1",
			Name:         "Spring Appeal",
			Channel:      ChannelBoth,
			Status:       CampaignDraft,
			EmailSubject: "Hello",
			EmailBody:    "<p>Hello</p>",
			SMSBody:      "Hello",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Campaign)
	}{
		{name: "missing tenant", mutate: func(c *Campaign) { c.TenantID = " " }},
		{name: "missing name", mutate: func(c *Campaign) { c.Name = "" }},
		{name: "invalid channel", mutate: func(c *Campaign) { c.Channel = "FAX" }},
		{name: "email leg without body", mutate: func(c *Campaign) {
			c.Channel = ChannelEmail
			c.EmailBody = ""
		}},
		{name: "sms leg without body", mutate: func(c *Campaign) {
			c.Channel = ChannelBoth
			c.SMSBody = "  "
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := valid()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCampaignContentFor(t *testing.T) {
	t.Parallel()

	c := &Campaign{EmailBody: "<p>email</p>", SMSBody: "sms"}
	if got := c.ContentFor(ChannelEmail); got != "<p>email</p>" {
		t.Fatalf("ContentFor(EMAIL) = %q", got)
	}
	if got := c.ContentFor(ChannelSMS); got != "sms" {
		t.Fatalf("ContentFor(SMS) = %q", got)
	}
}

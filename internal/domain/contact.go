package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContactStatus represents the consent-relevant state of a contact record.
type ContactStatus string

const (
	ContactActive     ContactStatus = "ACTIVE"
	ContactInactive   ContactStatus = "INACTIVE"
	ContactAnonymized ContactStatus = "ANONYMIZED"
)

func (s ContactStatus) String() string { return string(s) }

func (s ContactStatus) IsValid() bool {
	switch s {
	case ContactActive, ContactInactive, ContactAnonymized:
		return true
	}
	return false
}

func ParseContactStatusFromString(s string) (ContactStatus, error) {
	st := ContactStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid contact status %q", ErrValidation, s)
	}
	return st, nil
}

// Contact is one addressable person belonging to a tenant.
type Contact struct {
	ID           string        `gorm:"type:uuid;primaryKey"`
	TenantID     string        `gorm:"type:uuid;not null"`
	FirstName    string        `gorm:"type:varchar(255)"`
	LastName     string        `gorm:"type:varchar(255)"`
	Email        *string       `gorm:"type:varchar(255)"`
	Phone        *string       `gorm:"type:varchar(32)"`
	EmailConsent bool          `gorm:"not null;default:false"`
	SMSConsent   bool          `gorm:"not null;default:false;column:sms_consent"`
	Status       ContactStatus `gorm:"type:varchar(20);not null"`
	Tags         string        `gorm:"type:text;not null;default:''"`
	TotalDonated int64         `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanReceive reports per-leg eligibility: address present, consent given,
// record active and not anonymized.
func (c *Contact) CanReceive(leg Channel) bool {
	if c.Status != ContactActive {
		return false
	}

	switch leg {
	case ChannelEmail:
		return c.Email != nil && strings.TrimSpace(*c.Email) != "" && c.EmailConsent
	case ChannelSMS:
		return c.Phone != nil && strings.TrimSpace(*c.Phone) != "" && c.SMSConsent
	}
	return false
}

// HasTag reports membership in the comma-separated tag list.
func (c *Contact) HasTag(tag string) bool {
	want := strings.ToLower(strings.TrimSpace(tag))
	if want == "" {
		return false
	}

	for _, t := range strings.Split(c.Tags, ",") {
		if strings.ToLower(strings.TrimSpace(t)) == want {
			return true
		}
	}
	return false
}

// Address returns the delivery address for a leg, empty when absent.
func (c *Contact) Address(leg Channel) string {
	switch leg {
	case ChannelEmail:
		if c.Email != nil {
			return *c.Email
		}
	case ChannelSMS:
		if c.Phone != nil {
			return *c.Phone
		}
	}
	return ""
}

// SplitByChannel partitions contacts into per-leg recipient lists for the
// requested campaign channel. A contact lacking consent on one leg of a BOTH
// campaign still qualifies for the other; a contact qualifying for no leg is
// dropped entirely. The union counts each contact once regardless of legs.
func SplitByChannel(contacts []Contact, channel Channel) (perLeg map[Channel][]Contact, unionCount int) {
	perLeg = make(map[Channel][]Contact, 2)
	legs := channel.Legs()

	for i := range contacts {
		contact := contacts[i]
		matched := false
		for _, leg := range legs {
			if contact.CanReceive(leg) {
				perLeg[leg] = append(perLeg[leg], contact)
				matched = true
			}
		}
		if matched {
			unionCount++
		}
	}

	return perLeg, unionCount
}

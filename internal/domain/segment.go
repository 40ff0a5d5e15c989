package domain

import "fmt"

// TagMembership selects contacts carrying a tag.
type TagMembership struct {
	Tag string `json:"tag"`
}

// DonationRange selects contacts by cumulative donation, bounds inclusive.
type DonationRange struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// StatusEquals selects contacts by record status.
type StatusEquals struct {
	Status ContactStatus `json:"status"`
}

// SegmentFilter is a conjunction of typed predicates. A zero filter selects
// the full eligible baseline. Resolution always restricts to active,
// non-anonymized contacts of the owning tenant on top of these predicates.
type SegmentFilter struct {
	Tag      *TagMembership `json:"tag,omitempty"`
	Donation *DonationRange `json:"donation,omitempty"`
	Status   *StatusEquals  `json:"status,omitempty"`
}

// IsEmpty reports whether no predicate is set.
func (f SegmentFilter) IsEmpty() bool {
	return f.Tag == nil && f.Donation == nil && f.Status == nil
}

func (f SegmentFilter) Validate() error {
	if f.Tag != nil && f.Tag.Tag == "" {
		return fmt.Errorf("%w: tag predicate requires a tag", ErrValidation)
	}
	if f.Donation != nil {
		if f.Donation.Min == nil && f.Donation.Max == nil {
			return fmt.Errorf("%w: donation predicate requires a bound", ErrValidation)
		}
		if f.Donation.Min != nil && f.Donation.Max != nil && *f.Donation.Min > *f.Donation.Max {
			return fmt.Errorf("%w: donation min exceeds max", ErrValidation)
		}
	}
	if f.Status != nil && !f.Status.Status.IsValid() {
		return fmt.Errorf("%w: invalid status predicate %q", ErrValidation, f.Status.Status)
	}
	return nil
}

// Match evaluates the conjunction against a contact.
func (f SegmentFilter) Match(c *Contact) bool {
	if c == nil {
		return false
	}
	if f.Tag != nil && !c.HasTag(f.Tag.Tag) {
		return false
	}
	if f.Donation != nil {
		if f.Donation.Min != nil && c.TotalDonated < *f.Donation.Min {
			return false
		}
		if f.Donation.Max != nil && c.TotalDonated > *f.Donation.Max {
			return false
		}
	}
	if f.Status != nil && c.Status != f.Status.Status {
		return false
	}
	return true
}

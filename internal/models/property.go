package models

import "time"

// Property is the scraped artifact. Identity is the upstream propertyId.
type Property struct {
	PropertyID        string    `json:"property_id" badgerhold:"unique"`
	SearchTerm        string    `json:"search_term"`
	OwnerName         string    `json:"owner_name"`
	PropertyType      string    `json:"property_type"`
	City              string    `json:"city"`
	StreetAddress     string    `json:"street_address"`
	AssessedValue     *float64  `json:"assessed_value,omitempty"`
	AppraisedValue    float64   `json:"appraised_value"`
	GeoID             *string   `json:"geo_id,omitempty"`
	LegalDescription  *string   `json:"legal_description,omitempty"`
	ScrapedAt         time.Time `json:"scraped_at" badgerhold:"index"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Clone returns a copy whose pointer fields point at fresh values, so it is
// safe to mutate without affecting the original.
func (p *Property) Clone() *Property {
	c := *p
	if p.AssessedValue != nil {
		v := *p.AssessedValue
		c.AssessedValue = &v
	}
	if p.GeoID != nil {
		v := *p.GeoID
		c.GeoID = &v
	}
	if p.LegalDescription != nil {
		v := *p.LegalDescription
		c.LegalDescription = &v
	}
	return &c
}

// applyMutableFields copies every field except PropertyID and CreatedAt from src onto p.
// UpdatedAt and ScrapedAt are set by the caller to "now" after calling this.
func (p *Property) applyMutableFields(src *Property) {
	p.SearchTerm = src.SearchTerm
	p.OwnerName = src.OwnerName
	p.PropertyType = src.PropertyType
	p.City = src.City
	p.StreetAddress = src.StreetAddress
	p.AssessedValue = src.AssessedValue
	p.AppraisedValue = src.AppraisedValue
	p.GeoID = src.GeoID
	p.LegalDescription = src.LegalDescription
}

// ApplyUpdate merges src's mutable fields into p and stamps updatedAt/scrapedAt to now.
// createdAt is left untouched, satisfying the "updates never regress createdAt" invariant.
func (p *Property) ApplyUpdate(src *Property, now time.Time) {
	p.applyMutableFields(src)
	p.UpdatedAt = now
	p.ScrapedAt = now
}

// NewProperty builds a Property for first insertion: createdAt, updatedAt and
// scrapedAt are all stamped to now.
func NewProperty(src *Property, now time.Time) *Property {
	p := src.Clone()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.ScrapedAt = now
	return p
}

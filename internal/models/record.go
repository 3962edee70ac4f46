package models

// PropertyRecord is the shape the Scrape Executor yields for one upstream
// row, before the Upsert Pipeline turns it into a stored Property. It
// carries only the fields that come off the wire (§6 of spec.md); the
// Upsert Pipeline owns createdAt/updatedAt/scrapedAt stamping.
type PropertyRecord struct {
	PropertyID       string
	SearchTerm       string
	OwnerName        string
	PropertyType     string
	City             string
	StreetAddress    string
	AssessedValue    *float64
	AppraisedValue   float64
	GeoID            *string
	LegalDescription *string
}

// ToProperty converts a scraped record into a Property row shape, leaving
// timestamp fields zero for the caller (the Upsert Pipeline) to stamp.
func (r *PropertyRecord) ToProperty() *Property {
	return &Property{
		PropertyID:       r.PropertyID,
		SearchTerm:       r.SearchTerm,
		OwnerName:        r.OwnerName,
		PropertyType:     r.PropertyType,
		City:             r.City,
		StreetAddress:    r.StreetAddress,
		AssessedValue:    r.AssessedValue,
		AppraisedValue:   r.AppraisedValue,
		GeoID:            r.GeoID,
		LegalDescription: r.LegalDescription,
	}
}

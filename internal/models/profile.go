package models

// SellerProfile is the record extracted from one seller profile page.
// Scalar fields are nil when the page does not carry them.
type SellerProfile struct {
	Name         *string  `json:"name,omitempty"`
	Location     *string  `json:"location,omitempty"`
	ObjectsSold  *string  `json:"objects_sold,omitempty"`
	ReviewsCount *string  `json:"reviews_count,omitempty"`
	Score        *string  `json:"score,omitempty"`
	Story        *string  `json:"story,omitempty"`
	Reviews      []Review `json:"reviews"`
}

// Review is one buyer review from the feedback list.
type Review struct {
	Author   *string `json:"author,omitempty"`
	Type     *string `json:"type,omitempty"`
	DateISO  *string `json:"date_iso,omitempty"`
	DateText *string `json:"date_text,omitempty"`
	Body     *string `json:"body,omitempty"`
}

func NewSellerProfile() *SellerProfile {
	return &SellerProfile{
		Reviews: make([]Review, 0),
	}
}

// MissingFields lists the JSON names of the scalar fields that were not found.
func (p *SellerProfile) MissingFields() []string {
	var missing []string

	fields := []struct {
		name  string
		value *string
	}{
		{"name", p.Name},
		{"location", p.Location},
		{"objects_sold", p.ObjectsSold},
		{"reviews_count", p.ReviewsCount},
		{"score", p.Score},
		{"story", p.Story},
	}

	for _, f := range fields {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}

	return missing
}

// DisplayName returns the seller name or an empty string.
func (p *SellerProfile) DisplayName() string {
	if p.Name == nil {
		return ""
	}
	return *p.Name
}

// HasDate reports whether the review carries a parsed date.
func (r *Review) HasDate() bool {
	return r.DateISO != nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

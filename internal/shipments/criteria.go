package shipments

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of dates in query strings and report requests.
const DateLayout = "2006-01-02"

// Criteria is the user-facing form of a Filter, as it arrives in query
// parameters or a JSON body.
type Criteria struct {
	Q        string `json:"q,omitempty" query:"q" validate:"max=200"`
	HSCode   string `json:"hs_code,omitempty" query:"hs_code" validate:"omitempty,numeric,max=10"`
	Supplier string `json:"supplier,omitempty" query:"supplier" validate:"max=200"`
	Buyer    string `json:"buyer,omitempty" query:"buyer" validate:"max=200"`
	Country  string `json:"country,omitempty" query:"country" validate:"max=100"`
	From     string `json:"from,omitempty" query:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `json:"to,omitempty" query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Filter parses the criteria. From must not be after To.
func (c Criteria) Filter() (Filter, error) {
	f := Filter{
		Q:        strings.TrimSpace(c.Q),
		HSCode:   strings.TrimSpace(c.HSCode),
		Supplier: strings.TrimSpace(c.Supplier),
		Buyer:    strings.TrimSpace(c.Buyer),
		Country:  strings.TrimSpace(c.Country),
	}

	var err error
	if c.From != "" {
		if f.From, err = time.ParseInLocation(DateLayout, c.From, time.UTC); err != nil {
			return Filter{}, fmt.Errorf("invalid 'from' date '%s': expected YYYY-MM-DD", c.From)
		}
	}
	if c.To != "" {
		if f.To, err = time.ParseInLocation(DateLayout, c.To, time.UTC); err != nil {
			return Filter{}, fmt.Errorf("invalid 'to' date '%s': expected YYYY-MM-DD", c.To)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return Filter{}, fmt.Errorf("'from' (%s) is after 'to' (%s)", c.From, c.To)
	}
	return f, nil
}

// Describe renders the criteria as short "key: value" pairs for report
// headers. Empty fields are skipped.
func (c Criteria) Describe() []string {
	var out []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, label+": "+v)
		}
	}
	add("Search", c.Q)
	add("HS code", c.HSCode)
	add("Supplier", c.Supplier)
	add("Buyer", c.Buyer)
	add("Country", c.Country)
	add("From", c.From)
	add("To", c.To)
	return out
}

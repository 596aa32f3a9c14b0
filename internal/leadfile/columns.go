package leadfile

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadmap/internal/model"
)

// field identifies a Lead attribute a column can map to.
type field int

const (
	fieldUnknown field = iota
	fieldID
	fieldName
	fieldCity
	fieldState
	fieldServiceType
	fieldPhone
	fieldEmail
	fieldWebsite
	fieldAddress
	fieldRating
	fieldReviewCount
	fieldCreatedAt
)

// headerAliases maps normalized header text to a field. Scraper exports
// disagree on column names, so the common spellings are all accepted.
var headerAliases = map[string]field{
	"id":             fieldID,
	"lead_id":        fieldID,
	"name":           fieldName,
	"business_name":  fieldName,
	"company":        fieldName,
	"company_name":   fieldName,
	"title":          fieldName,
	"city":           fieldCity,
	"town":           fieldCity,
	"state":          fieldState,
	"state_code":     fieldState,
	"service_type":   fieldServiceType,
	"category":       fieldServiceType,
	"main_category":  fieldServiceType,
	"business_type":  fieldServiceType,
	"type":           fieldServiceType,
	"phone":          fieldPhone,
	"phone_number":   fieldPhone,
	"telephone":      fieldPhone,
	"email":          fieldEmail,
	"email_address":  fieldEmail,
	"website":        fieldWebsite,
	"url":            fieldWebsite,
	"site":           fieldWebsite,
	"address":        fieldAddress,
	"full_address":   fieldAddress,
	"street_address": fieldAddress,
	"rating":         fieldRating,
	"stars":          fieldRating,
	"review_count":   fieldReviewCount,
	"reviews":        fieldReviewCount,
	"reviews_count":  fieldReviewCount,
	"created_at":     fieldCreatedAt,
	"scraped_at":     fieldCreatedAt,
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// idNamespace seeds deterministic ids for rows without one, so importing the
// same file twice updates instead of duplicating.
var idNamespace = uuid.MustParse("6f1c3f8e-6d0b-4f53-9b7a-3a1f6f0d2c11")

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(h)
	return h
}

// columnMap resolves a header row into per-column fields. The first column
// claiming a field wins.
type columnMap []field

func newColumnMap(header []string) (columnMap, error) {
	m := make(columnMap, len(header))
	seen := make(map[field]bool)
	for i, h := range header {
		f := headerAliases[normalizeHeader(h)]
		if f == fieldUnknown || seen[f] {
			continue
		}
		seen[f] = true
		m[i] = f
	}
	var missing []string
	for _, req := range []struct {
		f    field
		name string
	}{{fieldName, "name"}, {fieldCity, "city"}, {fieldState, "state"}} {
		if !seen[req.f] {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing, Header: header}
	}
	return m, nil
}

// lead converts one data row. ok is false for blank rows. malformed reports
// optional values that failed to parse and were dropped.
func (m columnMap) lead(row []string) (l model.Lead, ok bool, malformed bool) {
	for i, raw := range row {
		if i >= len(m) {
			break
		}
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		ok = true
		switch m[i] {
		case fieldID:
			l.ID = v
		case fieldName:
			l.Name = v
		case fieldCity:
			l.City = v
		case fieldState:
			l.State = strings.ToUpper(v)
		case fieldServiceType:
			l.ServiceType = v
		case fieldPhone:
			l.Phone = v
		case fieldEmail:
			l.Email = v
		case fieldWebsite:
			l.Website = v
		case fieldAddress:
			l.Address = v
		case fieldRating:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				malformed = true
				continue
			}
			l.Rating = &f
		case fieldReviewCount:
			n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
			if err != nil {
				malformed = true
				continue
			}
			l.ReviewCount = &n
		case fieldCreatedAt:
			t, err := parseTime(v)
			if err != nil {
				malformed = true
				continue
			}
			l.CreatedAt = t
		}
	}
	if ok && l.ID == "" {
		l.ID = uuid.NewSHA1(idNamespace, []byte(strings.Join([]string{
			strings.ToLower(l.Name), l.Phone, strings.ToLower(l.City), l.State, l.Address,
		}, "|"))).String()
	}
	return l, ok, malformed
}

func parseTime(v string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		t, perr := time.Parse(layout, v)
		if perr == nil {
			return t.UTC(), nil
		}
		err = perr
	}
	return time.Time{}, eris.Wrapf(err, "leadfile: parse time %q", v)
}

package intake

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SourceID accepts a JSON string or number and keeps its text form.
type SourceID string

// UnmarshalJSON implements json.Unmarshaler.
func (s *SourceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SourceID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = SourceID(n.String())
	return nil
}

// Submission is the POST body accepted from third parties.
// A caller-supplied source is read but never stored.
type Submission struct {
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Country     string   `json:"country"`
	Brand       string   `json:"brand"`
	Source      string   `json:"source"`
	Funnel      string   `json:"funnel"`
	Desk        string   `json:"desk"`
	SourceID    SourceID `json:"source_id"`
	ConvertedAt string   `json:"convertedAt"`
}

// Validate checks required fields first, then the email format.
func (s *Submission) Validate() error {
	if s.FirstName == "" || s.LastName == "" || s.Email == "" {
		return errMissingFields()
	}
	if !emailPattern.MatchString(s.Email) {
		return errInvalidEmail(s.Email)
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseTimestamp parses an ISO-style date or date-time. Values without a zone
// are read as UTC. The second result is false when value is not parseable.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// convertedAt returns the backdated conversion time, or nil when absent or unparseable.
func (s *Submission) convertedAt() *time.Time {
	t, ok := ParseTimestamp(s.ConvertedAt)
	if !ok {
		return nil
	}
	return &t
}

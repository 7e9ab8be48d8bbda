package validation

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// MarshalJSON émet chaque violation sous forme de liste de messages par
// champ: {"email": ["already_taken"]}.
func (v Violations) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(v))
	for field, msg := range v {
		out[field] = []string{msg}
	}
	return json.Marshal(out)
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func Email(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v[field] = "invalid_email"
	}
}

func MinLen(field, value string, minLen int, v Violations) {
	if len(value) < minLen {
		v[field] = fmt.Sprintf("min_length_%d", minLen)
	}
}

// RequiredInt flags a missing integer field (decoded as *int so that
// absence and zero can be told apart).
func RequiredInt(field string, value *int, v Violations) {
	if value == nil {
		v[field] = "required"
	}
}

func IntMin(field string, value *int, minVal int, v Violations) {
	if value == nil {
		v[field] = "required"
		return
	}
	if *value < minVal {
		v[field] = fmt.Sprintf("must_be_gte_%d", minVal)
	}
}

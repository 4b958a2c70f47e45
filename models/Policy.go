package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

//goland:noinspection ALL
const (
	PTYPE_HR       = "HR"
	PTYPE_IT       = "IT"
	PTYPE_LEAVE    = "Leave"
	PTYPE_CUSTOMER = "Customer"
)

// PolicyTypes is the fixed enumeration accepted by the backend, in display order.
var PolicyTypes = []string{
	PTYPE_HR,
	PTYPE_IT,
	PTYPE_LEAVE,
	PTYPE_CUSTOMER,
}

// NormalizePolicyType maps a case-insensitive spelling onto the canonical type.
func NormalizePolicyType(t string) (string, bool) {
	t = strings.TrimSpace(t)
	for _, pt := range PolicyTypes {
		if strings.EqualFold(pt, t) {
			return pt, true
		}
	}
	return "", false
}

// PolicyID is server assigned and opaque. The backend may encode it as a JSON
// string or a number.
type PolicyID string

func (id *PolicyID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = PolicyID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("policy id must be a string or a number: %w", err)
	}
	*id = PolicyID(n.String())
	return nil
}

func (id PolicyID) String() string {
	return string(id)
}

type Policy struct {
	ID            PolicyID          `json:"id"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Scope         string            `json:"scope"`
	Description   string            `json:"description"`
	EffectiveDate string            `json:"effective_date"`
	ExpiryDate    string            `json:"expiry_date,omitempty"`
	Documents     []json.RawMessage `json:"documents,omitempty"`

	// Raw is the record as the API sent it, fields the console does not model included.
	Raw json.RawMessage `json:"-"`
}

func (p *Policy) UnmarshalJSON(b []byte) error {
	type plain Policy
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Policy(v)
	p.Raw = append(json.RawMessage(nil), bytes.TrimSpace(b)...)
	return nil
}

func (p Policy) DocumentCount() int {
	return len(p.Documents)
}

type Stats struct {
	TotalPolicies   int            `json:"total_policies"`
	ActivePolicies  int            `json:"active_policies"`
	ExpiredPolicies int            `json:"expired_policies"`
	PolicyTypes     map[string]int `json:"policy_types"`
	Timestamp       string         `json:"timestamp"`
}

type ServiceInfo struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

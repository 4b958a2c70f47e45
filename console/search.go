package console

import (
	"strings"

	"git.sr.ht/~aondrejcak/policy-console/models"
)

// Search matches the query case-insensitively against name, description, type
// and scope. A policy matching several fields is returned once, in listing order.
func Search(policies []models.Policy, query string) []models.Policy {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	matches := make([]models.Policy, 0)
	for _, p := range policies {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(p.Type), q) ||
			strings.Contains(strings.ToLower(p.Scope), q) {
			matches = append(matches, p)
		}
	}
	return matches
}

// FindByName returns every policy whose trimmed name equals name, ignoring case.
func FindByName(policies []models.Policy, name string) []models.Policy {
	want := strings.TrimSpace(name)
	var matches []models.Policy
	for _, p := range policies {
		if strings.EqualFold(strings.TrimSpace(p.Name), want) {
			matches = append(matches, p)
		}
	}
	return matches
}

// Duplicate returns the first policy already using name, or nil.
func Duplicate(policies []models.Policy, name string) *models.Policy {
	matches := FindByName(policies, name)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

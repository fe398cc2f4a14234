package models

// AutomationProvider enumerates the supported action back-ends.
type AutomationProvider string

const (
	ProviderAnsibleTower   AutomationProvider = "ansible_tower"
	ProviderTerraformCloud AutomationProvider = "terraform_cloud"
	ProviderServiceNow     AutomationProvider = "servicenow"
)

// AutomationMatch narrows which alerts a rule applies to. Zero-value fields
// are wildcards.
type AutomationMatch struct {
	FailureType   FailureType `json:"failure_type,omitempty" yaml:"failure_type,omitempty"`
	IssueKey      string      `json:"issue_key,omitempty" yaml:"issue_key,omitempty"`
	MinConfidence float64     `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
}

// Matches reports whether the alert satisfies every configured filter.
func (m AutomationMatch) Matches(a Alert) bool {
	if m.FailureType != "" && m.FailureType != a.FailureType {
		return false
	}
	if m.IssueKey != "" && m.IssueKey != a.IssueKey {
		return false
	}
	if m.MinConfidence > 0 && a.Confidence < m.MinConfidence {
		return false
	}
	return true
}

// AutomationAction describes what happens when a rule fires.
type AutomationAction struct {
	Provider AutomationProvider `json:"provider" yaml:"provider"`
	Params   map[string]string  `json:"params,omitempty" yaml:"params,omitempty"`
}

// AutomationRule is a YAML-backed, CRUD-able trigger evaluated against alerts.
type AutomationRule struct {
	ID       string            `json:"id" yaml:"id"`
	Match    AutomationMatch   `json:"match" yaml:"match"`
	Action   AutomationAction  `json:"action" yaml:"action"`
	Cooldown string            `json:"cooldown" yaml:"cooldown"` // e.g. "5m", "1h"
}

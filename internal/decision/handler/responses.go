package handler

import (
	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	"klok/internal/decision"
)

// DecisionResponse is the HTTP shape of a decision.
type DecisionResponse struct {
	Jurisdiction     string              `json:"jurisdiction"`
	Classification   string              `json:"classification"`
	RuleVersion      string              `json:"rule_version"`
	Decision         string              `json:"decision"`
	CanIssueInvoices bool                `json:"can_issue_invoices"`
	HighRiskAdvisory bool                `json:"high_risk_advisory"`
	RiskProfile      *models.RiskProfile `json:"risk_profile,omitempty"`
	Kind             string              `json:"kind,omitempty"`
	Reason           string              `json:"reason,omitempty"`
	Remediation      string              `json:"remediation,omitempty"`
}

func FromDecision(d decision.Decision) *DecisionResponse {
	resp := &DecisionResponse{
		Jurisdiction:     d.Jurisdiction,
		Classification:   d.Requested,
		RuleVersion:      d.RuleVersion,
		Decision:         string(d.Outcome),
		CanIssueInvoices: d.Approved(),
		HighRiskAdvisory: d.HighRiskAdvisory,
		RiskProfile:      d.Risk,
	}
	if d.Block != nil {
		resp.Kind = string(d.Block.Kind)
		resp.Reason = d.Block.Reason
		resp.Remediation = d.Block.Remediation
	}
	return resp
}

// RecommendResponse is the HTTP shape of a recommendation.
type RecommendResponse struct {
	Jurisdiction     string             `json:"jurisdiction"`
	RuleVersion      string             `json:"rule_version"`
	Suggested        string             `json:"suggested_classification"`
	PaymentPath      string             `json:"payment_path"`
	CanIssueInvoices bool               `json:"can_issue_invoices"`
	RiskProfile      models.RiskProfile `json:"risk_profile"`
}

func FromRecommendation(r decision.Recommendation) *RecommendResponse {
	return &RecommendResponse{
		Jurisdiction:     r.Jurisdiction,
		RuleVersion:      r.RuleVersion,
		Suggested:        string(r.Suggested),
		PaymentPath:      string(r.PaymentPath),
		CanIssueInvoices: r.CanIssueInvoices,
		RiskProfile:      r.Risk,
	}
}

type JurisdictionsResponse struct {
	Jurisdictions []providers.Capabilities `json:"jurisdictions"`
}

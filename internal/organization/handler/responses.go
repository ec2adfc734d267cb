package handler

import (
	"time"

	"klok/internal/compliance/models"
	"klok/internal/organization"
)

type RiskResponse struct {
	OverallRisk        models.RiskLevel  `json:"overall_risk"`
	Scores             models.RiskScores `json:"scores"`
	Reasons            []string          `json:"reasons"`
	RecommendedActions []string          `json:"recommended_actions"`
	InsufficientData   bool              `json:"insufficient_data"`
	RuleVersion        string            `json:"rule_version"`
	AssessedAt         time.Time         `json:"assessed_at"`
	ReviewRequiredAt   time.Time         `json:"review_required_at"`
}

type OrganizationResponse struct {
	ID             string                     `json:"id"`
	Name           string                     `json:"name"`
	Jurisdiction   string                     `json:"jurisdiction"`
	RegistrationNo string                     `json:"registration_no,omitempty"`
	TaxNumber      string                     `json:"tax_number,omitempty"`
	VATNumber      string                     `json:"vat_number,omitempty"`
	Profile        models.OrganizationProfile `json:"profile"`
	Risk           *RiskResponse              `json:"risk_assessment"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

func FromOrganization(o *organization.Organization) OrganizationResponse {
	resp := OrganizationResponse{
		ID:             o.ID.String(),
		Name:           o.Name,
		Jurisdiction:   o.Jurisdiction,
		RegistrationNo: o.RegistrationNo,
		TaxNumber:      o.TaxNumber,
		VATNumber:      o.VATNumber,
		Profile:        o.Profile,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.Risk != nil {
		resp.Risk = &RiskResponse{
			OverallRisk:        o.Risk.Profile.OverallRisk,
			Scores:             o.Risk.Profile.Scores,
			Reasons:            o.Risk.Profile.Reasons,
			RecommendedActions: o.Risk.Profile.RecommendedActions,
			InsufficientData:   o.Risk.Profile.InsufficientData,
			RuleVersion:        o.Risk.RuleVersion,
			AssessedAt:         o.Risk.AssessedAt,
			ReviewRequiredAt:   o.Risk.ReviewRequiredAt,
		}
	}
	return resp
}

type ReviewDueResponse struct {
	Organizations []OrganizationResponse `json:"organizations"`
}

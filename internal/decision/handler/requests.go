package handler

import (
	"strings"

	"klok/internal/compliance/models"
	dErrors "klok/pkg/domain-errors"
)

const (
	maxJurisdictionLen   = 8
	maxClassificationLen = 64
)

// CheckEligibilityRequest is the body for POST /classification/check-eligibility.
// The classification is not parsed here: an unknown name is a blocked
// decision, not a malformed request.
type CheckEligibilityRequest struct {
	Jurisdiction   string                    `json:"jurisdiction"`
	Classification string                    `json:"classification"`
	Factors        models.ControlTestFactors `json:"factors"`
}

func (r *CheckEligibilityRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validateJurisdiction(&r.Jurisdiction); err != nil {
		return err
	}
	if len(r.Classification) > maxClassificationLen {
		return dErrors.New(dErrors.CodeValidation, "classification is too long")
	}
	r.Classification = strings.TrimSpace(r.Classification)
	if r.Classification == "" {
		return dErrors.New(dErrors.CodeValidation, "classification is required")
	}
	return nil
}

// RecommendRequest is the body for POST /classification/recommend.
type RecommendRequest struct {
	Jurisdiction string                    `json:"jurisdiction"`
	Factors      models.ControlTestFactors `json:"factors"`
}

func (r *RecommendRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return validateJurisdiction(&r.Jurisdiction)
}

func validateJurisdiction(j *string) error {
	if len(*j) > maxJurisdictionLen {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction is too long")
	}
	*j = strings.ToUpper(strings.TrimSpace(*j))
	if *j == "" {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction is required")
	}
	return nil
}

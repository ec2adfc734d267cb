package za

import (
	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
)

const (
	// Code is the ISO 3166 code this provider registers under.
	Code = "ZA"

	// RuleVersion identifies the rule set stamped on every decision. Bump it
	// whenever a rule that can change a decision changes.
	RuleVersion = "za-2026.1"
)

var (
	// VATThreshold is the compulsory VAT registration turnover.
	VATThreshold = decimal.NewFromInt(1_000_000)

	// BBBEEThreshold is the turnover above which a B-BBEE certificate is expected.
	BBBEEThreshold = decimal.NewFromInt(10_000_000)
)

func req(docType, name string, cat models.RequirementCategory, mandatory bool, validityDays int) models.ComplianceRequirement {
	r := models.ComplianceRequirement{DocType: docType, Name: name, Mandatory: mandatory, Category: cat}
	if validityDays > 0 {
		r.ValidityPeriod = models.ValidityDays(validityDays)
	}
	return r
}

// DefaultConfig returns a fresh copy of the South African rule set.
func DefaultConfig() *models.JurisdictionConfig {
	return &models.JurisdictionConfig{
		Code:         Code,
		Name:         "South Africa",
		Currency:     "ZAR",
		RuleVersion:  RuleVersion,
		VATRate:      decimal.NewFromInt(15),
		VATThreshold: VATThreshold,
		OrgTypes: []models.OrgType{
			models.OrgSoleProprietor,
			models.OrgPartnership,
			models.OrgCorporation,
			models.OrgCloseCorporation,
			models.OrgTrust,
			models.OrgNonProfit,
		},
		Formats: models.FormatRules{
			// SARS income tax reference numbers
			TaxNumber: `[01239]\d{9}`,
			VATNumber: `4\d{9}`,
			Registration: map[models.OrgType]string{
				models.OrgCorporation:      `\d{4}/\d{6}/(06|07)`,
				models.OrgCloseCorporation: `(CK)?\d{4}/\d{6}/23`,
				models.OrgNonProfit:        `\d{4}/\d{6}/08`,
				models.OrgTrust:            `IT\d{1,6}/\d{4}`,
			},
		},
		Classifications: models.DefaultClassificationSets(),
		Risk:            defaultRiskRules(),
		Documents:       defaultDocumentRules(),
	}
}

func defaultRiskRules() models.RiskRules {
	return models.RiskRules{
		Baseline:             5,
		Thresholds:           models.RiskThresholds{Low: 2.5, Medium: 5, High: 7.5},
		PEPOwner:             3,
		ForeignOwner:         2,
		UnverifiedBank:       3,
		VerifiedBank:         -1,
		MissingTaxRegistered: 2,
		HighRiskIndustry:     2,
		LowRiskIndustry:      -1,
		HighRiskRegion:       2,
		MissingDocument:      1,
		MissingDocumentCap:   3,
		AllDocumentsVerified: -2,
		BankRevenueThreshold: decimal.NewFromInt(1_000_000),
		HighRiskIndustries: []string{
			"construction", "mining", "security_services", "cash_in_transit",
			"gambling", "precious_metals", "crypto_assets", "labour_broking",
		},
		LowRiskIndustries: []string{
			"software", "professional_services", "education", "healthcare",
		},
		// FATF high-risk jurisdictions subject to a call for action
		HighRiskRegions: []string{"KP", "IR", "MM"},
		Relationship: []models.RelationshipRule{
			{
				Factor: models.FactorFixedWorkplace, Dimension: models.DimensionGeography,
				EmployeePoints: 3, IndependentPoints: -3,
				EmployeeReason:    "worker performs the work at the engager's premises",
				IndependentReason: "worker chooses where the work is performed",
				Action:            "Record why the engagement requires on-site presence",
			},
			{
				Factor: models.FactorFixedHours, Dimension: models.DimensionCompliance,
				EmployeePoints: 3, IndependentPoints: -3,
				EmployeeReason:    "engager sets the worker's hours",
				IndependentReason: "worker sets their own hours",
				Action:            "Contract for deliverables rather than hours",
			},
			{
				Factor: models.FactorSupervised, Dimension: models.DimensionOwnership,
				EmployeePoints: 3, IndependentPoints: -3,
				EmployeeReason:    "engager supervises and directs how the work is done",
				IndependentReason: "worker controls how the work is done",
				Action:            "Remove day-to-day supervision or reassess the classification",
			},
			{
				Factor: models.FactorUsesCompanyEquipment, Dimension: models.DimensionFinancial,
				EmployeePoints: 3, IndependentPoints: -3,
				EmployeeReason:    "engager supplies the tools of trade",
				IndependentReason: "worker supplies their own tools of trade",
				Action:            "Have the worker supply their own equipment",
			},
			{
				Factor: models.FactorHasOtherClients, Dimension: models.DimensionFinancial,
				EmployeePoints: 3, IndependentPoints: -3,
				EmployeeReason:    "worker is economically dependent on a single engager",
				IndependentReason: "worker renders services to other clients",
				Action:            "Obtain evidence that the worker serves other clients",
			},
			{
				Factor: models.FactorPaidRegularSalary, Dimension: models.DimensionFinancial,
				EmployeePoints: 3, IndependentPoints: -3,
				EmployeeReason:    "worker receives a regular salary rather than fees per deliverable",
				IndependentReason: "worker is paid per deliverable or milestone",
				Action:            "Pay against invoices for deliverables, not a fixed periodic amount",
			},
		},
	}
}

func defaultDocumentRules() models.DocumentRules {
	contractor := []models.ComplianceRequirement{
		req("contractor_agreement", "Independent contractor agreement", models.CategoryContract, true, 0),
		req("tax_compliance_pin", "SARS tax compliance status PIN", models.CategoryTax, true, 365),
		req("bank_confirmation", "Bank confirmation letter", models.CategoryFinancial, true, 90),
		req("contractor_id", "Identity document", models.CategoryIdentity, true, 0),
	}
	employee := []models.ComplianceRequirement{
		req("employment_contract", "Written particulars of employment (BCEA s29)", models.CategoryContract, true, 0),
		req("employee_id", "Identity document", models.CategoryIdentity, true, 0),
		req("irp5_tax_number", "Employee income tax reference number", models.CategoryTax, true, 0),
		req("uif_declaration", "UIF declaration (UI-19)", models.CategoryPayroll, true, 0),
	}
	labourBroker := append(append([]models.ComplianceRequirement{}, employee...),
		req("tes_agreement", "Temporary employment service agreement (LRA s198)", models.CategoryContract, true, 0))

	return models.DocumentRules{
		Base: []models.ComplianceRequirement{
			req("director_id", "Identity documents of directors or owners", models.CategoryIdentity, true, 0),
			req("proof_of_address", "Proof of business address", models.CategoryIdentity, true, 90),
			req("tax_compliance_pin", "SARS tax compliance status PIN", models.CategoryTax, true, 365),
			req("bank_confirmation", "Bank confirmation letter", models.CategoryFinancial, true, 90),
		},
		ByOrgType: map[models.OrgType][]models.ComplianceRequirement{
			models.OrgCorporation: {
				req("cipc_registration", "CIPC registration certificate (CoR14.3)", models.CategoryRegistration, true, 0),
				req("share_register", "Securities register", models.CategoryRegistration, true, 0),
				req("beneficial_ownership", "Beneficial ownership register", models.CategoryRegistration, true, 365),
			},
			models.OrgCloseCorporation: {
				req("ck1_founding_statement", "Founding statement (CK1)", models.CategoryRegistration, true, 0),
			},
			models.OrgTrust: {
				req("trust_deed", "Trust deed", models.CategoryRegistration, true, 0),
				req("letters_of_authority", "Master's letters of authority", models.CategoryRegistration, true, 0),
			},
			models.OrgPartnership: {
				req("partnership_agreement", "Partnership agreement", models.CategoryRegistration, true, 0),
			},
			models.OrgNonProfit: {
				req("npo_certificate", "NPO registration certificate", models.CategoryRegistration, true, 0),
				req("constitution", "Founding constitution", models.CategoryRegistration, true, 0),
			},
		},
		RevenueTiers: []models.RevenueTier{
			{Threshold: VATThreshold, Items: []models.ComplianceRequirement{
				req("vat_registration", "VAT registration notice (VAT103)", models.CategoryTax, true, 0),
			}},
			{Threshold: BBBEEThreshold, Items: []models.ComplianceRequirement{
				req("bbbee_certificate", "B-BBEE verification certificate", models.CategoryRegistration, false, 365),
			}},
		},
		WithEmployees: []models.ComplianceRequirement{
			req("paye_registration", "PAYE employer registration (EMP101)", models.CategoryPayroll, true, 0),
			req("uif_registration", "UIF employer registration", models.CategoryPayroll, true, 0),
			req("sdl_registration", "Skills development levy registration", models.CategoryPayroll, true, 0),
			req("coida_good_standing", "COIDA letter of good standing", models.CategoryLabour, true, 365),
		},
		ByClassification: map[models.Classification][]models.ComplianceRequirement{
			models.IndependentContractor: contractor,
			models.Freelancer:            contractor,
			models.Consultant: append(append([]models.ComplianceRequirement{}, contractor...),
				req("professional_indemnity", "Professional indemnity cover", models.CategoryFinancial, false, 365)),
			models.FixedTermEmployee:    append(append([]models.ComplianceRequirement{}, employee...), req("fixed_term_justification", "Justification for fixed term (LRA s198B)", models.CategoryContract, true, 0)),
			models.TemporaryEmployee:    employee,
			models.CasualWorker:         employee,
			models.LabourBrokerEmployee: labourBroker,
		},
	}
}

package models

// RiskLevel is the bucketed overall risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders levels so callers can compare them.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// IsElevated is true for High and Critical, the levels that carry an advisory.
func (l RiskLevel) IsElevated() bool {
	return l == RiskHigh || l == RiskCritical
}

// Dimension is one axis of the risk profile.
type Dimension string

const (
	DimensionIndustry   Dimension = "industry"
	DimensionGeography  Dimension = "geography"
	DimensionOwnership  Dimension = "ownership"
	DimensionCompliance Dimension = "compliance"
	DimensionFinancial  Dimension = "financial"
)

// Dimensions returns the five axes in a fixed order.
func Dimensions() []Dimension {
	return []Dimension{DimensionIndustry, DimensionGeography, DimensionOwnership, DimensionCompliance, DimensionFinancial}
}

const (
	MinScore = 1
	MaxScore = 10
)

// RiskScores holds one 1..10 score per dimension.
type RiskScores struct {
	Industry   int `json:"industry"`
	Geography  int `json:"geography"`
	Ownership  int `json:"ownership"`
	Compliance int `json:"compliance"`
	Financial  int `json:"financial"`
}

// UniformScores sets every dimension to v.
func UniformScores(v int) RiskScores {
	return RiskScores{Industry: v, Geography: v, Ownership: v, Compliance: v, Financial: v}
}

func (s RiskScores) Get(d Dimension) int {
	switch d {
	case DimensionIndustry:
		return s.Industry
	case DimensionGeography:
		return s.Geography
	case DimensionOwnership:
		return s.Ownership
	case DimensionCompliance:
		return s.Compliance
	case DimensionFinancial:
		return s.Financial
	default:
		return 0
	}
}

func (s *RiskScores) Set(d Dimension, v int) {
	switch d {
	case DimensionIndustry:
		s.Industry = v
	case DimensionGeography:
		s.Geography = v
	case DimensionOwnership:
		s.Ownership = v
	case DimensionCompliance:
		s.Compliance = v
	case DimensionFinancial:
		s.Financial = v
	}
}

// Mean is the arithmetic mean across the five dimensions.
func (s RiskScores) Mean() float64 {
	return float64(s.Industry+s.Geography+s.Ownership+s.Compliance+s.Financial) / 5
}

// Adjustment is one named rule that moved a dimension.
type Adjustment struct {
	Rule      string    `json:"rule"`
	Dimension Dimension `json:"dimension"`
	Delta     int       `json:"delta"`
}

// RiskProfile is the explained output of scoring. Every adjustment has a
// matching entry in Reasons.
type RiskProfile struct {
	OverallRisk        RiskLevel    `json:"overall_risk"`
	Scores             RiskScores   `json:"scores"`
	Mean               float64      `json:"mean"`
	Reasons            []string     `json:"reasons"`
	RecommendedActions []string     `json:"recommended_actions"`
	Adjustments        []Adjustment `json:"adjustments"`
	InsufficientData   bool         `json:"insufficient_data"`
}

// RiskThresholds are the inclusive upper bounds of the Low, Medium and High
// buckets; anything above High is Critical.
type RiskThresholds struct {
	Low    float64 `yaml:"low" json:"low"`
	Medium float64 `yaml:"medium" json:"medium"`
	High   float64 `yaml:"high" json:"high"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// FundingType is the fixed set of opportunity categories.
type FundingType string

const (
	TypeScholarship  FundingType = "scholarship"
	TypeBursary      FundingType = "bursary"
	TypeGrant        FundingType = "grant"
	TypePrize        FundingType = "prize"
	TypeHardshipFund FundingType = "hardship-fund"
	TypeLoan         FundingType = "loan"
)

// FundingTypes lists every valid FundingType.
var FundingTypes = []FundingType{
	TypeScholarship, TypeBursary, TypeGrant, TypePrize, TypeHardshipFund, TypeLoan,
}

// ValidFundingType reports whether t is one of the fixed set.
func ValidFundingType(t FundingType) bool {
	for _, v := range FundingTypes {
		if v == t {
			return true
		}
	}
	return false
}

// AmountUnknown is the sentinel used when no amount could be extracted
// and no synthetic value was assigned.
const AmountUnknown = "amount unknown"

// Opportunity is a normalized funding offer. Records are created fresh each
// acquisition cycle; IDs are unique within a cycle, not globally stable.
type Opportunity struct {
	ID             uuid.UUID   `json:"id"`
	Title          string      `json:"title"`
	Provider       string      `json:"provider"`
	Amount         string      `json:"amount"`
	Type           FundingType `json:"type"`
	Deadline       time.Time   `json:"deadline"`
	Eligibility    string      `json:"eligibility"`
	RelevanceScore int         `json:"relevance_score"`
	IsNew          bool        `json:"is_new"`
	SourceURL      string      `json:"source_url,omitempty"`
}

// UserProfile mirrors the externally persisted profile record. Only the
// fields the acquisition prompt cares about are modeled here.
type UserProfile struct {
	UserID         string `json:"user_id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EducationLevel string `json:"education_level"` // pre-university, undergraduate, postgraduate
	FieldOfStudy   string `json:"field_of_study"`
	Institution    string `json:"institution"`
}

// FundingPreferences are the user's stated funding preferences, also owned
// by the external profile store.
type FundingPreferences struct {
	DesiredTypes       []FundingType `json:"desired_types"`
	EligibilityFactors []string      `json:"eligibility_factors"`
	MinAmount          float64       `json:"min_amount"`
}

// Application tracks a user's progress against one opportunity.
type Application struct {
	ID               uuid.UUID  `json:"id"`
	UserID           string     `json:"user_id"`
	OpportunityTitle string     `json:"opportunity_title"`
	Provider         string     `json:"provider"`
	Status           string     `json:"status"` // planned, in-progress, submitted, accepted, rejected
	Notes            string     `json:"notes"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ApplicationStatuses is the allowed application status set.
var ApplicationStatuses = []string{"planned", "in-progress", "submitted", "accepted", "rejected"}

// ValidApplicationStatus reports whether s is an allowed status.
func ValidApplicationStatus(s string) bool {
	for _, v := range ApplicationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

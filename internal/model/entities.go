package model

import (
	"time"

	"gorm.io/datatypes"
)

// MedicalSource is an authority the knowledge base cites (WHO, ICMR, ...)
type MedicalSource struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	FullName       string    `gorm:"type:varchar(255)" json:"full_name,omitempty"`
	AuthorityLevel int       `gorm:"not null;default:3" json:"authority_level"` // 1 = highest
	URL            string    `gorm:"type:text" json:"url,omitempty"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// MedicalCondition is a disease or symptom cluster the catalog knows about
type MedicalCondition struct {
	ID                int64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string                      `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	ICDCode           string                      `gorm:"column:icd_code;type:varchar(10)" json:"icd_code,omitempty"`
	Description       string                      `gorm:"type:text" json:"description,omitempty"`
	Symptoms          datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"symptoms"`
	Treatments        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"treatments"`
	WarningSigns      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"warning_signs"`
	Contraindications datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"contraindications"`
	Prevention        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"prevention"`
	CreatedAt         time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// FactType scopes a fact to the kind of claim it can support
type FactType string

const (
	FactSymptom    FactType = "symptom"
	FactTreatment  FactType = "treatment"
	FactPrevention FactType = "prevention"
)

// FactTypeForClaim maps a claim type to the fact type it is checked against.
// Prevention claims are checked like treatments when no prevention facts fit.
func FactTypeForClaim(t ClaimType) (FactType, bool) {
	switch t {
	case ClaimSymptom:
		return FactSymptom, true
	case ClaimTreatment:
		return FactTreatment, true
	case ClaimPrevention:
		return FactPrevention, true
	default:
		return "", false
	}
}

// MedicalFact is one atomic, sourced statement; immutable after seeding
type MedicalFact struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConditionID int64     `gorm:"index;not null" json:"condition_id"`
	SourceID    int64     `gorm:"index;not null" json:"source_id"`
	FactType    FactType  `gorm:"type:varchar(20);index;not null" json:"fact_type"`
	FactText    string    `gorm:"type:text;not null" json:"fact_text"`
	Confidence  float64   `gorm:"not null;default:0.8" json:"confidence"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	Condition *MedicalCondition `gorm:"foreignKey:ConditionID" json:"-"`

	// Source survives JSON round-trips so cached fact sets keep their
	// provenance for ordering and reporting.
	Source *MedicalSource `gorm:"foreignKey:SourceID" json:"source,omitempty"`
}

// ResponseValidation is the persisted projection of one ValidationResult
type ResponseValidation struct {
	ID                 int64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             string                      `gorm:"type:varchar(64);index" json:"user_id"`
	MessageID          string                      `gorm:"type:varchar(64);index" json:"message_id"`
	UserQuery          string                      `gorm:"type:text;not null" json:"user_query"`
	BotResponse        string                      `gorm:"type:text;not null" json:"bot_response"`
	RiskLevel          RiskLevel                   `gorm:"type:varchar(10);index;not null" json:"risk_level"`
	RequiresEscalation bool                        `gorm:"not null" json:"requires_escalation"`
	EscalationTrigger  string                      `gorm:"type:varchar(50)" json:"escalation_trigger,omitempty"`
	ConfidenceScore    float64                     `json:"confidence_score"`
	AccuracyScore      *float64                    `json:"accuracy_score,omitempty"`
	SemanticConfidence *float64                    `json:"semantic_confidence,omitempty"`
	Keywords           datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"keywords"`
	ContradictedClaims datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"contradicted_claims"`
	Message            string                      `gorm:"column:validation_message;type:text" json:"validation_message"`
	CreatedAt          time.Time                   `gorm:"autoCreateTime;index" json:"created_at"`
}

// CaseStatus is the lifecycle state of an escalated case
type CaseStatus string

const (
	CaseOpen       CaseStatus = "open"
	CaseInProgress CaseStatus = "in_progress"
	CaseResolved   CaseStatus = "resolved"
	CaseClosed     CaseStatus = "closed"
)

// CanTransition reports whether moving to next respects the forward-only lifecycle
func (s CaseStatus) CanTransition(next CaseStatus) bool {
	switch s {
	case CaseOpen:
		return next == CaseInProgress || next == CaseResolved || next == CaseClosed
	case CaseInProgress:
		return next == CaseResolved || next == CaseClosed
	default:
		return false
	}
}

// Terminal reports whether the case accepts no further transitions
func (s CaseStatus) Terminal() bool {
	return s == CaseResolved || s == CaseClosed
}

// EscalatedCase is a human-review ticket opened for a risky answer
type EscalatedCase struct {
	ID                int64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	CaseNumber        string                      `gorm:"type:varchar(20);uniqueIndex;not null" json:"case_number"`
	UserID            string                      `gorm:"type:varchar(64);index;not null" json:"user_id"`
	OriginalQuery     string                      `gorm:"type:text;not null" json:"original_query"`
	BotResponse       string                      `gorm:"type:text" json:"bot_response"`
	Severity          RiskLevel                   `gorm:"type:varchar(10);not null" json:"severity"`
	Reason            string                      `gorm:"column:escalation_reason;type:text" json:"reason"`
	KeywordsTriggered datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"keywords_triggered"`
	ValidationID      *int64                      `gorm:"index" json:"validation_id,omitempty"`
	AssignedExpertID  *int64                      `gorm:"index" json:"assigned_expert_id,omitempty"`
	Status            CaseStatus                  `gorm:"type:varchar(20);index;not null;default:open" json:"status"`
	ResolutionNotes   string                      `gorm:"type:text" json:"resolution_notes,omitempty"`
	CreatedAt         time.Time                   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
	ResolvedAt        *time.Time                  `json:"resolved_at,omitempty"`

	AssignedExpert *Expert `gorm:"foreignKey:AssignedExpertID" json:"-"`
}

// Expert is a human reviewer; the roster is maintained out of band
type Expert struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"type:varchar(100);not null" json:"name"`
	PhoneNumber    string    `gorm:"type:varchar(20)" json:"phone_number,omitempty"`
	Specialization string    `gorm:"type:varchar(100)" json:"specialization,omitempty"`
	IsActive       bool      `gorm:"not null;default:true;index" json:"is_active"`
	IsAvailable    bool      `gorm:"not null;default:true;index" json:"is_available"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Disclaimer is localized cautionary text for one risk tier.
// At most one active row may exist per (risk_level, language); overrides
// deactivate the old row rather than stacking duplicates.
type Disclaimer struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RiskLevel RiskLevel `gorm:"type:varchar(10);not null;uniqueIndex:ux_disclaimer_active,where:is_active" json:"risk_level"`
	Language  Language  `gorm:"type:varchar(5);not null;uniqueIndex:ux_disclaimer_active,where:is_active" json:"language"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Priority  int       `gorm:"not null;default:1" json:"priority"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DisclaimerTracking is the append-only proof that a user saw a disclaimer
type DisclaimerTracking struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	DisclaimerID int64     `gorm:"index;not null" json:"disclaimer_id"`
	MessageID    string    `gorm:"type:varchar(64)" json:"message_id,omitempty"`
	Context      string    `gorm:"type:text" json:"context,omitempty"`
	ShownAt      time.Time `gorm:"autoCreateTime;index" json:"shown_at"`

	Disclaimer *Disclaimer `gorm:"foreignKey:DisclaimerID" json:"-"`
}

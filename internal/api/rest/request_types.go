package rest

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/report"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	evalsvc "github.com/itrc/evaluation-workflow/internal/service/evaluation"
)

type ApplicationRequest struct {
	ProductName     string    `json:"product_name" validate:"required,max=200"`
	ProductVersion  string    `json:"product_version" validate:"max=50"`
	ProductTypeID   uuid.UUID `json:"product_type_id" validate:"required"`
	Description     string    `json:"description" validate:"max=10000"`
	EvaluationLevel string    `json:"evaluation_level" validate:"max=20"`
	CompanyName     string    `json:"company_name" validate:"required,max=200"`
	ContactPerson   string    `json:"contact_person" validate:"required,max=100"`
	ContactEmail    string    `json:"contact_email" validate:"required,email"`
	ContactPhone    string    `json:"contact_phone" validate:"max=30"`
}

func (r ApplicationRequest) Details() application.Details {
	return application.Details{
		ProductName:     r.ProductName,
		ProductVersion:  r.ProductVersion,
		ProductTypeID:   r.ProductTypeID,
		Description:     r.Description,
		EvaluationLevel: r.EvaluationLevel,
		CompanyName:     r.CompanyName,
		ContactPerson:   r.ContactPerson,
		ContactEmail:    r.ContactEmail,
		ContactPhone:    r.ContactPhone,
	}
}

type DescriptionsRequest struct {
	ProductDescription string `json:"product_description" validate:"max=20000"`
	TOEDescription     string `json:"toe_description" validate:"max=20000"`
}

type SelectionRequest struct {
	ClassID       uuid.UUID  `json:"class_id" validate:"required"`
	SubclassID    *uuid.UUID `json:"subclass_id"`
	Description   string     `json:"description" validate:"required"`
	Justification string     `json:"justification"`
	TestApproach  string     `json:"test_approach"`
}

func (r SelectionRequest) Content() securitytarget.Content {
	return securitytarget.Content{
		Description:   r.Description,
		Justification: r.Justification,
		TestApproach:  r.TestApproach,
	}
}

type ClassEvaluationRequest struct {
	EvaluationStatus securitytarget.EvaluationStatus `json:"evaluation_status"`
	// Score is validated against [0, 100] by the selection itself.
	Score          *decimal.Decimal `json:"evaluation_score"`
	EvaluatorNotes string           `json:"evaluator_notes" validate:"max=20000"`
}

func (r ClassEvaluationRequest) toService() evalsvc.ClassEvaluationRequest {
	return evalsvc.ClassEvaluationRequest{
		Status: r.EvaluationStatus,
		Score:  r.Score,
		Notes:  r.EvaluatorNotes,
	}
}

type CreateEvaluationRequest struct {
	ApplicationID uuid.UUID  `json:"application_id" validate:"required"`
	EvaluatorID   *uuid.UUID `json:"evaluator_id"`
}

type AssignEvaluatorRequest struct {
	EvaluatorID uuid.UUID `json:"evaluator_id" validate:"required"`
}

type UpdateEvaluationRequest struct {
	DocumentReviewCompleted          *bool   `json:"document_review_completed"`
	SecurityTestingCompleted         *bool   `json:"security_testing_completed"`
	VulnerabilityAssessmentCompleted *bool   `json:"vulnerability_assessment_completed"`
	Findings                         *string `json:"findings" validate:"omitempty,max=50000"`
	Recommendations                  *string `json:"recommendations" validate:"omitempty,max=50000"`
	OnHold                           *bool   `json:"on_hold"`
}

func (r UpdateEvaluationRequest) toService() evalsvc.UpdateRequest {
	return evalsvc.UpdateRequest{
		Checklist: evaluation.ChecklistUpdate{
			DocumentReview:          r.DocumentReviewCompleted,
			SecurityTesting:         r.SecurityTestingCompleted,
			VulnerabilityAssessment: r.VulnerabilityAssessmentCompleted,
		},
		Findings:        r.Findings,
		Recommendations: r.Recommendations,
		OnHold:          r.OnHold,
	}
}

type GenerateReportRequest struct {
	Title string `json:"title" validate:"max=500"`
}

type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,decision"`
	Comments string `json:"comments" validate:"max=20000"`
}

// ScoreResponse carries an aggregate that may be absent.
type ScoreResponse struct {
	EvaluationID uuid.UUID        `json:"evaluation_id"`
	Score        *decimal.Decimal `json:"score"`
}

func validateDecision(fl validator.FieldLevel) bool {
	_, err := report.ParseDecision(fl.Field().String())
	return err == nil
}

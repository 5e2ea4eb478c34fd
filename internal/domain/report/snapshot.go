package report

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
	"github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
)

const TemplateVersion = "1.0"

// Snapshot is the frozen, denormalized data a report was generated from.
type Snapshot struct {
	Evaluation      EvaluationData     `json:"evaluation"`
	Application     ApplicationData    `json:"application"`
	Evaluator       PersonData         `json:"evaluator"`
	Applicant       PersonData         `json:"applicant"`
	SecurityTarget  SecurityTargetData `json:"security_target"`
	Selections      []SelectionData    `json:"class_selections"`
	AggregateScore  *decimal.Decimal   `json:"aggregate_score,omitempty"`
	GenerationDate  time.Time          `json:"generation_date"`
	TemplateVersion string             `json:"report_template_version"`
}

type EvaluationData struct {
	ID              uuid.UUID        `json:"id"`
	StartDate       time.Time        `json:"start_date"`
	EndDate         *time.Time       `json:"end_date,omitempty"`
	Status          string           `json:"status"`
	OverallScore    *decimal.Decimal `json:"overall_score,omitempty"`
	Findings        string           `json:"findings,omitempty"`
	Recommendations string           `json:"recommendations,omitempty"`
}

type ApplicationData struct {
	ID                uuid.UUID  `json:"id"`
	ApplicationNumber string     `json:"application_number"`
	ProductName       string     `json:"product_name"`
	ProductVersion    string     `json:"product_version"`
	Description       string     `json:"description,omitempty"`
	EvaluationLevel   string     `json:"evaluation_level,omitempty"`
	CompanyName       string     `json:"company_name,omitempty"`
	ContactPerson     string     `json:"contact_person,omitempty"`
	ContactEmail      string     `json:"contact_email,omitempty"`
	SubmissionDate    *time.Time `json:"submission_date,omitempty"`
}

type PersonData struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Company  string    `json:"company,omitempty"`
}

type SecurityTargetData struct {
	ID                 uuid.UUID `json:"id"`
	Version            string    `json:"version"`
	ProductDescription string    `json:"product_description,omitempty"`
	TOEDescription     string    `json:"toe_description,omitempty"`
}

type SelectionData struct {
	ClassCode        string           `json:"class_code"`
	ClassNameEn      string           `json:"class_name_en"`
	ClassNameFa      string           `json:"class_name_fa"`
	ClassWeight      decimal.Decimal  `json:"class_weight"`
	SubclassCode     string           `json:"subclass_code,omitempty"`
	SubclassNameEn   string           `json:"subclass_name_en,omitempty"`
	SubclassNameFa   string           `json:"subclass_name_fa,omitempty"`
	Description      string           `json:"description"`
	Justification    string           `json:"justification,omitempty"`
	TestApproach     string           `json:"test_approach,omitempty"`
	EvaluatorNotes   string           `json:"evaluator_notes,omitempty"`
	EvaluationStatus string           `json:"evaluation_status"`
	EvaluationScore  *decimal.Decimal `json:"evaluation_score,omitempty"`

	classOrder    int
	subclassOrder int
}

// Score is the score the report is judged on: the persisted overall score,
// falling back to the aggregate computed at generation time.
func (s *Snapshot) Score() *decimal.Decimal {
	if s.Evaluation.OverallScore != nil {
		return s.Evaluation.OverallScore
	}
	return s.AggregateScore
}

// SnapshotInput gathers the entities a snapshot is assembled from.
type SnapshotInput struct {
	Evaluation     *evaluation.Evaluation
	Application    *application.Application
	Evaluator      *user.User
	Applicant      *user.User
	SecurityTarget *securitytarget.SecurityTarget
	Selections     []securitytarget.ClassSelection
	Catalog        *catalog.Catalog
	Now            time.Time
}

// BuildSnapshot denormalizes the evaluation graph. Evaluation, application
// and security target are required.
func BuildSnapshot(in SnapshotInput) (*Snapshot, error) {
	switch {
	case in.Evaluation == nil:
		return nil, errors.NewNotFoundError("evaluation")
	case in.Application == nil:
		return nil, errors.NewNotFoundError("application")
	case in.SecurityTarget == nil:
		return nil, errors.NewNotFoundError("security target")
	case in.Catalog == nil:
		return nil, errors.NewInternalError("catalog is not configured")
	}

	ev, app, st := in.Evaluation, in.Application, in.SecurityTarget
	snap := &Snapshot{
		Evaluation: EvaluationData{
			ID:              ev.ID,
			StartDate:       ev.StartDate,
			EndDate:         ev.EndDate,
			Status:          ev.Status.String(),
			OverallScore:    ev.OverallScore,
			Findings:        ev.Findings,
			Recommendations: ev.Recommendations,
		},
		Application: ApplicationData{
			ID:                app.ID,
			ApplicationNumber: app.Number,
			ProductName:       app.ProductName,
			ProductVersion:    app.ProductVersion,
			Description:       app.Description,
			EvaluationLevel:   app.EvaluationLevel,
			CompanyName:       app.CompanyName,
			ContactPerson:     app.ContactPerson,
			ContactEmail:      app.ContactEmail,
			SubmissionDate:    app.SubmissionDate,
		},
		Evaluator: person(in.Evaluator),
		Applicant: person(in.Applicant),
		SecurityTarget: SecurityTargetData{
			ID:                 st.ID,
			Version:            st.Version,
			ProductDescription: st.ProductDescription,
			TOEDescription:     st.TOEDescription,
		},
		Selections:      make([]SelectionData, 0, len(in.Selections)),
		GenerationDate:  in.Now,
		TemplateVersion: TemplateVersion,
	}

	scores := make([]evaluation.WeightedScore, 0, len(in.Selections))
	for _, sel := range in.Selections {
		cl, err := in.Catalog.Class(sel.ClassID)
		if err != nil {
			return nil, err
		}
		data := SelectionData{
			ClassCode:        cl.Code,
			ClassNameEn:      cl.NameEn,
			ClassNameFa:      cl.NameFa,
			ClassWeight:      cl.Weight,
			Description:      sel.Description,
			Justification:    sel.Justification,
			TestApproach:     sel.TestApproach,
			EvaluatorNotes:   sel.EvaluatorNotes,
			EvaluationStatus: sel.EvaluationStatus.String(),
			EvaluationScore:  sel.EvaluationScore,
			classOrder:       cl.DisplayOrder,
		}
		if sel.SubclassID != nil {
			sub, err := in.Catalog.Subclass(*sel.SubclassID)
			if err != nil {
				return nil, err
			}
			data.SubclassCode = sub.Code
			data.SubclassNameEn = sub.NameEn
			data.SubclassNameFa = sub.NameFa
			data.subclassOrder = sub.DisplayOrder
		}
		snap.Selections = append(snap.Selections, data)
		scores = append(scores, evaluation.WeightedScore{Score: sel.EvaluationScore, Weight: cl.Weight})
	}

	sort.SliceStable(snap.Selections, func(i, j int) bool {
		a, b := snap.Selections[i], snap.Selections[j]
		if a.classOrder != b.classOrder {
			return a.classOrder < b.classOrder
		}
		if a.ClassCode != b.ClassCode {
			return a.ClassCode < b.ClassCode
		}
		if a.subclassOrder != b.subclassOrder {
			return a.subclassOrder < b.subclassOrder
		}
		return a.SubclassCode < b.SubclassCode
	})
	snap.AggregateScore = evaluation.AggregateScore(scores)

	return snap, nil
}

func person(u *user.User) PersonData {
	if u == nil {
		return PersonData{}
	}
	return PersonData{ID: u.ID, FullName: u.FullName, Email: u.Email, Company: u.CompanyName}
}

package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
)

// AntimalwareTypeID is the product type of the embedded catalog seed.
var AntimalwareTypeID = catalog.ProductTypeID("ANTIMALWARE")

// ApplicationBuilder builds test Application entities
type ApplicationBuilder struct {
	t           *testing.T
	applicantID uuid.UUID
	details     application.Details
	status      application.Status
	now         time.Time
}

// NewApplicationBuilder creates a DRAFT antimalware application.
func NewApplicationBuilder(t *testing.T) *ApplicationBuilder {
	t.Helper()
	return &ApplicationBuilder{
		t:           t,
		applicantID: uuid.New(),
		details: application.Details{
			ProductName:     "SecureShield Antimalware Pro",
			ProductVersion:  "3.5.2",
			ProductTypeID:   AntimalwareTypeID,
			Description:     "Antimalware solution with real-time protection",
			EvaluationLevel: "EAL2",
			CompanyName:     "TechSafe Solutions",
			ContactPerson:   "Ali Applicant",
			ContactEmail:    "applicant@company.com",
		},
		status: application.StatusDraft,
		now:    time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func (b *ApplicationBuilder) WithApplicant(id uuid.UUID) *ApplicationBuilder {
	b.applicantID = id
	return b
}

func (b *ApplicationBuilder) WithProduct(name, version string) *ApplicationBuilder {
	b.details.ProductName = name
	b.details.ProductVersion = version
	return b
}

func (b *ApplicationBuilder) WithProductType(id uuid.UUID) *ApplicationBuilder {
	b.details.ProductTypeID = id
	return b
}

// WithStatus forces the status without running transitions.
func (b *ApplicationBuilder) WithStatus(status application.Status) *ApplicationBuilder {
	b.status = status
	return b
}

func (b *ApplicationBuilder) At(now time.Time) *ApplicationBuilder {
	b.now = now
	return b
}

func (b *ApplicationBuilder) Build() *application.Application {
	b.t.Helper()
	app, err := application.NewApplication(b.applicantID, b.details, b.now)
	require.NoError(b.t, err)
	// Application numbers are millisecond-based; keep built ones unique.
	app.Number = application.FormatNumber(b.now) + "-" + app.ID.String()[:4]
	app.Status = b.status
	if b.status != application.StatusDraft {
		submitted := b.now
		app.SubmissionDate = &submitted
	}
	return app
}

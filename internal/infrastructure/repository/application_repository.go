package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
)

// ApplicationRepository persists applications in PostgreSQL.
type ApplicationRepository struct {
	conn Conn
}

func NewApplicationRepository(conn Conn) *ApplicationRepository {
	return &ApplicationRepository{conn: conn}
}

const applicationColumns = `
	a.id, a.application_number, a.product_name, a.product_version, a.product_type_id,
	a.applicant_id, a.description, a.evaluation_level, a.company_name, a.contact_person,
	a.contact_email, a.contact_phone, a.status, a.submission_date,
	a.estimated_completion_date, a.actual_completion_date, a.created_at, a.updated_at`

// Create inserts a new application
func (r *ApplicationRepository) Create(ctx context.Context, a *application.Application) error {
	_, err := r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO applications (
			id, application_number, product_name, product_version, product_type_id,
			applicant_id, description, evaluation_level, company_name, contact_person,
			contact_email, contact_phone, status, submission_date,
			estimated_completion_date, actual_completion_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)`,
		a.ID, a.Number, a.ProductName, a.ProductVersion, a.ProductTypeID,
		a.ApplicantID, a.Description, a.EvaluationLevel, a.CompanyName, a.ContactPerson,
		a.ContactEmail, a.ContactPhone, a.Status.String(), a.SubmissionDate,
		a.EstimatedCompletionDate, a.ActualCompletionDate, a.CreatedAt, a.UpdatedAt,
	)
	return wrapError(err, "application", "create")
}

// GetByID retrieves an application by ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*application.Application, error) {
	return r.get(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1`, id)
}

// GetForUpdate reads the application and locks its row until the surrounding
// transaction ends.
func (r *ApplicationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*application.Application, error) {
	return r.get(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1 FOR UPDATE`, id)
}

func (r *ApplicationRepository) get(ctx context.Context, query string, id uuid.UUID) (*application.Application, error) {
	a, err := scanApplication(r.conn.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "application", "get")
	}
	return a, nil
}

// Update writes every mutable column of the application.
func (r *ApplicationRepository) Update(ctx context.Context, a *application.Application) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx, `
		UPDATE applications SET
			product_name = $2, product_version = $3, product_type_id = $4,
			description = $5, evaluation_level = $6, company_name = $7,
			contact_person = $8, contact_email = $9, contact_phone = $10,
			status = $11, submission_date = $12, estimated_completion_date = $13,
			actual_completion_date = $14, updated_at = $15
		WHERE id = $1`,
		a.ID, a.ProductName, a.ProductVersion, a.ProductTypeID,
		a.Description, a.EvaluationLevel, a.CompanyName,
		a.ContactPerson, a.ContactEmail, a.ContactPhone,
		a.Status.String(), a.SubmissionDate, a.EstimatedCompletionDate,
		a.ActualCompletionDate, a.UpdatedAt,
	)
	if err != nil {
		return wrapError(err, "application", "update")
	}
	if tag.RowsAffected() == 0 {
		return wrapError(ErrNotFound, "application", "update")
	}
	return nil
}

// List returns applications matching filter, newest first.
func (r *ApplicationRepository) List(ctx context.Context, filter application.Filter) ([]*application.Application, error) {
	where, args := applicationWhere(filter)
	query := `SELECT ` + applicationColumns + ` FROM applications a` + where + ` ORDER BY a.created_at DESC, a.id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.conn.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "application", "list")
	}
	defer rows.Close()

	var apps []*application.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, wrapError(err, "application", "scan")
		}
		apps = append(apps, a)
	}
	return apps, wrapError(rows.Err(), "application", "list")
}

// CountByStatus returns the count of applications grouped by status
func (r *ApplicationRepository) CountByStatus(ctx context.Context, filter application.Filter) (map[application.Status]int, error) {
	filter.Status = nil
	filter.Statuses = nil
	where, args := applicationWhere(filter)
	rows, err := r.conn.Querier(ctx).Query(ctx,
		`SELECT a.status, COUNT(*) FROM applications a`+where+` GROUP BY a.status`, args...)
	if err != nil {
		return nil, wrapError(err, "application", "count")
	}
	defer rows.Close()

	counts := make(map[application.Status]int)
	for rows.Next() {
		var (
			raw string
			n   int
		)
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, wrapError(err, "application", "scan")
		}
		status, err := application.ParseStatus(raw)
		if err != nil {
			return nil, wrapError(err, "application", "scan")
		}
		counts[status] = n
	}
	return counts, wrapError(rows.Err(), "application", "count")
}

func applicationWhere(f application.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ApplicantID != nil {
		args = append(args, *f.ApplicantID)
		conds = append(conds, fmt.Sprintf("a.applicant_id = $%d", len(args)))
	}
	if f.EvaluatorID != nil {
		args = append(args, *f.EvaluatorID)
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM evaluations e WHERE e.application_id = a.id AND e.evaluator_id = $%d)", len(args)))
	}
	if f.Status != nil {
		args = append(args, f.Status.String())
		conds = append(conds, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		names := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			names[i] = st.String()
		}
		args = append(args, names)
		conds = append(conds, fmt.Sprintf("a.status = ANY($%d)", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanApplication(row rowScanner) (*application.Application, error) {
	var (
		a      application.Application
		status string
	)
	err := row.Scan(
		&a.ID, &a.Number, &a.ProductName, &a.ProductVersion, &a.ProductTypeID,
		&a.ApplicantID, &a.Description, &a.EvaluationLevel, &a.CompanyName, &a.ContactPerson,
		&a.ContactEmail, &a.ContactPhone, &status, &a.SubmissionDate,
		&a.EstimatedCompletionDate, &a.ActualCompletionDate, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.Status, err = application.ParseStatus(status); err != nil {
		return nil, err
	}
	return &a, nil
}

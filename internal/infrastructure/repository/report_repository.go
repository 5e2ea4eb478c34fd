package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/report"
)

// ReportRepository persists technical reports in PostgreSQL.
type ReportRepository struct {
	conn Conn
}

func NewReportRepository(conn Conn) *ReportRepository {
	return &ReportRepository{conn: conn}
}

const reportColumns = `
	r.id, r.evaluation_id, r.report_number, r.title, r.status, r.generated_by_id,
	r.reviewed_by_id, r.supervisor_comments, r.report_data, r.file_path, r.file_size,
	r.format, r.generated_at, r.submitted_for_review_at, r.reviewed_at, r.approved_at,
	r.created_at, r.updated_at`

// LockNumbering serializes report-number allocation for year until the
// surrounding transaction ends. It must run inside a transaction.
func (r *ReportRepository) LockNumbering(ctx context.Context, year int) error {
	_, err := r.conn.Querier(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('technical_report_number'), $1::int)`, year)
	return wrapError(err, "report number", "lock")
}

// CountWithPrefix counts reports whose number starts with prefix.
func (r *ReportRepository) CountWithPrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM technical_reports WHERE report_number LIKE $1 || '%'`, prefix).Scan(&n)
	return n, wrapError(err, "report", "count")
}

// Create inserts a report with its JSON snapshot.
func (r *ReportRepository) Create(ctx context.Context, rep *report.TechnicalReport) error {
	data, err := json.Marshal(rep.ReportData)
	if err != nil {
		return fmt.Errorf("failed to marshal report data: %w", err)
	}
	_, err = r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO technical_reports (
			id, evaluation_id, report_number, title, status, generated_by_id,
			reviewed_by_id, supervisor_comments, report_data, file_path, file_size,
			format, generated_at, submitted_for_review_at, reviewed_at, approved_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		rep.ID, rep.EvaluationID, rep.ReportNumber, rep.Title, rep.Status.String(), rep.GeneratedByID,
		rep.ReviewedByID, rep.SupervisorComments, data, rep.Artifact.Path, rep.Artifact.Size,
		rep.Artifact.Format, rep.GeneratedAt, rep.SubmittedForReviewAt, rep.ReviewedAt, rep.ApprovedAt,
		rep.CreatedAt, rep.UpdatedAt,
	)
	return wrapError(err, "report", "create")
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*report.TechnicalReport, error) {
	rep, err := scanReport(r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT `+reportColumns+` FROM technical_reports r WHERE r.id = $1`, id))
	if err != nil {
		return nil, wrapError(err, "report", "get")
	}
	return rep, nil
}

// Update writes the review lifecycle columns. The snapshot is immutable.
func (r *ReportRepository) Update(ctx context.Context, rep *report.TechnicalReport) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx, `
		UPDATE technical_reports SET
			title = $2, status = $3, reviewed_by_id = $4, supervisor_comments = $5,
			file_path = $6, file_size = $7, format = $8, submitted_for_review_at = $9,
			reviewed_at = $10, approved_at = $11, updated_at = $12
		WHERE id = $1`,
		rep.ID, rep.Title, rep.Status.String(), rep.ReviewedByID, rep.SupervisorComments,
		rep.Artifact.Path, rep.Artifact.Size, rep.Artifact.Format, rep.SubmittedForReviewAt,
		rep.ReviewedAt, rep.ApprovedAt, rep.UpdatedAt,
	)
	if err != nil {
		return wrapError(err, "report", "update")
	}
	if tag.RowsAffected() == 0 {
		return wrapError(ErrNotFound, "report", "update")
	}
	return nil
}

// FindActiveByEvaluation returns the newest report of the evaluation whose
// status blocks generating another one.
func (r *ReportRepository) FindActiveByEvaluation(ctx context.Context, evaluationID uuid.UUID) (*report.TechnicalReport, error) {
	var active []string
	for _, s := range report.Statuses {
		if s.IsActive() {
			active = append(active, s.String())
		}
	}
	rep, err := scanReport(r.conn.Querier(ctx).QueryRow(ctx, `
		SELECT `+reportColumns+` FROM technical_reports r
		WHERE r.evaluation_id = $1 AND r.status = ANY($2)
		ORDER BY r.generated_at DESC
		LIMIT 1`, evaluationID, active))
	if err != nil {
		return nil, wrapError(err, "report", "get")
	}
	return rep, nil
}

// List returns reports matching filter, newest first. Snapshots are included.
func (r *ReportRepository) List(ctx context.Context, filter report.Filter) ([]*report.TechnicalReport, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		conds = append(conds, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.EvaluationID != nil {
		args = append(args, *filter.EvaluationID)
		conds = append(conds, fmt.Sprintf("r.evaluation_id = $%d", len(args)))
	}
	if filter.EvaluatorID != nil {
		args = append(args, *filter.EvaluatorID)
		conds = append(conds, fmt.Sprintf("e.evaluator_id = $%d", len(args)))
	}
	if filter.ApplicantID != nil {
		args = append(args, *filter.ApplicantID)
		conds = append(conds, fmt.Sprintf("a.applicant_id = $%d", len(args)))
	}

	query := `SELECT ` + reportColumns + ` FROM technical_reports r
		JOIN evaluations e ON e.id = r.evaluation_id
		JOIN applications a ON a.id = e.application_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY r.generated_at DESC, r.id"

	rows, err := r.conn.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "report", "list")
	}
	defer rows.Close()

	var out []*report.TechnicalReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, wrapError(err, "report", "scan")
		}
		out = append(out, rep)
	}
	return out, wrapError(rows.Err(), "report", "list")
}

func scanReport(row rowScanner) (*report.TechnicalReport, error) {
	var (
		rep    report.TechnicalReport
		status string
		data   []byte
	)
	err := row.Scan(
		&rep.ID, &rep.EvaluationID, &rep.ReportNumber, &rep.Title, &status, &rep.GeneratedByID,
		&rep.ReviewedByID, &rep.SupervisorComments, &data, &rep.Artifact.Path, &rep.Artifact.Size,
		&rep.Artifact.Format, &rep.GeneratedAt, &rep.SubmittedForReviewAt, &rep.ReviewedAt, &rep.ApprovedAt,
		&rep.CreatedAt, &rep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rep.Status, err = report.ParseStatus(status); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		var snap report.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report data: %w", err)
		}
		rep.ReportData = &snap
	}
	return &rep, nil
}

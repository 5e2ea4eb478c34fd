package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
)

// EvaluationRepository persists evaluations in PostgreSQL.
type EvaluationRepository struct {
	conn Conn
}

func NewEvaluationRepository(conn Conn) *EvaluationRepository {
	return &EvaluationRepository{conn: conn}
}

const evaluationColumns = `
	e.id, e.application_id, e.evaluator_id, e.status, e.start_date, e.end_date,
	e.document_review_completed, e.security_testing_completed,
	e.vulnerability_assessment_completed, e.overall_score, e.findings,
	e.recommendations, e.report_ready_for_generation, e.report_generated_at,
	e.created_at, e.updated_at`

// Create inserts an evaluation. A second evaluation for the same application
// yields a conflict.
func (r *EvaluationRepository) Create(ctx context.Context, e *evaluation.Evaluation) error {
	_, err := r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO evaluations (
			id, application_id, evaluator_id, status, start_date, end_date,
			document_review_completed, security_testing_completed,
			vulnerability_assessment_completed, overall_score, findings,
			recommendations, report_ready_for_generation, report_generated_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.ApplicationID, e.EvaluatorID, e.Status.String(), e.StartDate, e.EndDate,
		e.Checklist.DocumentReview, e.Checklist.SecurityTesting,
		e.Checklist.VulnerabilityAssessment, nullDecimal(e.OverallScore), e.Findings,
		e.Recommendations, e.ReportReadyForGeneration, e.ReportGeneratedAt,
		e.CreatedAt, e.UpdatedAt,
	)
	return wrapError(err, "evaluation", "create")
}

// GetByID retrieves an evaluation by ID
func (r *EvaluationRepository) GetByID(ctx context.Context, id uuid.UUID) (*evaluation.Evaluation, error) {
	e, err := scanEvaluation(r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations e WHERE e.id = $1`, id))
	if err != nil {
		return nil, wrapError(err, "evaluation", "get")
	}
	return e, nil
}

// GetByApplication retrieves the evaluation of an application.
func (r *EvaluationRepository) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*evaluation.Evaluation, error) {
	e, err := scanEvaluation(r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations e WHERE e.application_id = $1`, applicationID))
	if err != nil {
		return nil, wrapError(err, "evaluation", "get")
	}
	return e, nil
}

// Update writes every mutable column of the evaluation.
func (r *EvaluationRepository) Update(ctx context.Context, e *evaluation.Evaluation) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx, `
		UPDATE evaluations SET
			evaluator_id = $2, status = $3, end_date = $4,
			document_review_completed = $5, security_testing_completed = $6,
			vulnerability_assessment_completed = $7, overall_score = $8,
			findings = $9, recommendations = $10, report_ready_for_generation = $11,
			report_generated_at = $12, updated_at = $13
		WHERE id = $1`,
		e.ID, e.EvaluatorID, e.Status.String(), e.EndDate,
		e.Checklist.DocumentReview, e.Checklist.SecurityTesting,
		e.Checklist.VulnerabilityAssessment, nullDecimal(e.OverallScore),
		e.Findings, e.Recommendations, e.ReportReadyForGeneration,
		e.ReportGeneratedAt, e.UpdatedAt,
	)
	if err != nil {
		return wrapError(err, "evaluation", "update")
	}
	if tag.RowsAffected() == 0 {
		return wrapError(ErrNotFound, "evaluation", "update")
	}
	return nil
}

// List returns evaluations matching filter, newest first.
func (r *EvaluationRepository) List(ctx context.Context, filter evaluation.Filter) ([]*evaluation.Evaluation, error) {
	var (
		conds []string
		args  []any
	)
	if filter.EvaluatorID != nil {
		args = append(args, *filter.EvaluatorID)
		conds = append(conds, fmt.Sprintf("e.evaluator_id = $%d", len(args)))
	}
	if filter.ApplicantID != nil {
		args = append(args, *filter.ApplicantID)
		conds = append(conds, fmt.Sprintf("a.applicant_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		conds = append(conds, fmt.Sprintf("e.status = $%d", len(args)))
	}

	query := `SELECT ` + evaluationColumns + ` FROM evaluations e
		JOIN applications a ON a.id = e.application_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.start_date DESC, e.id"

	rows, err := r.conn.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "evaluation", "list")
	}
	defer rows.Close()

	var out []*evaluation.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, wrapError(err, "evaluation", "scan")
		}
		out = append(out, e)
	}
	return out, wrapError(rows.Err(), "evaluation", "list")
}

func scanEvaluation(row rowScanner) (*evaluation.Evaluation, error) {
	var (
		e      evaluation.Evaluation
		status string
		score  decimal.NullDecimal
	)
	err := row.Scan(
		&e.ID, &e.ApplicationID, &e.EvaluatorID, &status, &e.StartDate, &e.EndDate,
		&e.Checklist.DocumentReview, &e.Checklist.SecurityTesting,
		&e.Checklist.VulnerabilityAssessment, &score, &e.Findings,
		&e.Recommendations, &e.ReportReadyForGeneration, &e.ReportGeneratedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if e.Status, err = evaluation.ParseStatus(status); err != nil {
		return nil, err
	}
	if score.Valid {
		v := score.Decimal
		e.OverallScore = &v
	}
	return &e, nil
}

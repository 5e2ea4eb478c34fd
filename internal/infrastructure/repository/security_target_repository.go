package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
)

// SecurityTargetRepository persists security targets and their class selections.
type SecurityTargetRepository struct {
	conn Conn
}

func NewSecurityTargetRepository(conn Conn) *SecurityTargetRepository {
	return &SecurityTargetRepository{conn: conn}
}

const securityTargetColumns = `id, application_id, version, product_description, toe_description,
	status, submitted_at, created_at, updated_at`

const selectionColumns = `s.id, s.security_target_id, s.class_id, s.subclass_id, s.description,
	s.justification, s.test_approach, s.evaluator_notes, s.evaluation_status,
	s.evaluation_score, s.created_at, s.updated_at`

// CreateIfAbsent inserts st unless the application already has a security
// target. It reports whether the row was inserted.
func (r *SecurityTargetRepository) CreateIfAbsent(ctx context.Context, st *securitytarget.SecurityTarget) (bool, error) {
	tag, err := r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO security_targets (`+securityTargetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (application_id) DO NOTHING`,
		st.ID, st.ApplicationID, st.Version, st.ProductDescription, st.TOEDescription,
		st.Status.String(), st.SubmittedAt, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return false, wrapError(err, "security target", "create")
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID retrieves a security target without its selections.
func (r *SecurityTargetRepository) GetByID(ctx context.Context, id uuid.UUID) (*securitytarget.SecurityTarget, error) {
	row := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT `+securityTargetColumns+` FROM security_targets WHERE id = $1`, id)
	st, err := scanSecurityTarget(row)
	if err != nil {
		return nil, wrapError(err, "security target", "get")
	}
	return st, nil
}

// GetByApplication retrieves the security target of an application without its selections.
func (r *SecurityTargetRepository) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*securitytarget.SecurityTarget, error) {
	row := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT `+securityTargetColumns+` FROM security_targets WHERE application_id = $1`, applicationID)
	st, err := scanSecurityTarget(row)
	if err != nil {
		return nil, wrapError(err, "security target", "get")
	}
	return st, nil
}

// Update writes the descriptive fields and status.
func (r *SecurityTargetRepository) Update(ctx context.Context, st *securitytarget.SecurityTarget) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx, `
		UPDATE security_targets SET
			version = $2, product_description = $3, toe_description = $4,
			status = $5, submitted_at = $6, updated_at = $7
		WHERE id = $1`,
		st.ID, st.Version, st.ProductDescription, st.TOEDescription,
		st.Status.String(), st.SubmittedAt, st.UpdatedAt,
	)
	if err != nil {
		return wrapError(err, "security target", "update")
	}
	if tag.RowsAffected() == 0 {
		return wrapError(ErrNotFound, "security target", "update")
	}
	return nil
}

// ListSelections returns the selections of a security target in insertion order.
func (r *SecurityTargetRepository) ListSelections(ctx context.Context, securityTargetID uuid.UUID) ([]securitytarget.ClassSelection, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx, `
		SELECT `+selectionColumns+` FROM class_selections s
		WHERE s.security_target_id = $1
		ORDER BY s.created_at, s.id`, securityTargetID)
	if err != nil {
		return nil, wrapError(err, "class selection", "list")
	}
	defer rows.Close()

	var out []securitytarget.ClassSelection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, wrapError(err, "class selection", "scan")
		}
		out = append(out, *sel)
	}
	return out, wrapError(rows.Err(), "class selection", "list")
}

// CountSelections returns how many selections the security target holds.
func (r *SecurityTargetRepository) CountSelections(ctx context.Context, securityTargetID uuid.UUID) (int, error) {
	var n int
	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM class_selections WHERE security_target_id = $1`, securityTargetID).Scan(&n)
	return n, wrapError(err, "class selection", "count")
}

// GetSelection retrieves one selection by ID.
func (r *SecurityTargetRepository) GetSelection(ctx context.Context, id uuid.UUID) (*securitytarget.ClassSelection, error) {
	sel, err := scanSelection(r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT `+selectionColumns+` FROM class_selections s WHERE s.id = $1`, id))
	if err != nil {
		return nil, wrapError(err, "class selection", "get")
	}
	return sel, nil
}

// FindSelection looks a selection up by its (security target, class, subclass) key.
func (r *SecurityTargetRepository) FindSelection(ctx context.Context, key securitytarget.SelectionKey) (*securitytarget.ClassSelection, error) {
	sel, err := scanSelection(r.conn.Querier(ctx).QueryRow(ctx, `
		SELECT `+selectionColumns+` FROM class_selections s
		WHERE s.security_target_id = $1
		  AND s.class_id = $2
		  AND COALESCE(s.subclass_id, '00000000-0000-0000-0000-000000000000'::uuid) = $3`,
		key.SecurityTargetID, key.ClassID, key.SubclassID))
	if err != nil {
		return nil, wrapError(err, "class selection", "get")
	}
	return sel, nil
}

// CreateSelection inserts a selection. A second row with the same key yields a conflict.
func (r *SecurityTargetRepository) CreateSelection(ctx context.Context, s *securitytarget.ClassSelection) error {
	_, err := r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO class_selections (
			id, security_target_id, class_id, subclass_id, description,
			justification, test_approach, evaluator_notes, evaluation_status,
			evaluation_score, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.SecurityTargetID, s.ClassID, s.SubclassID, s.Description,
		s.Justification, s.TestApproach, s.EvaluatorNotes, s.EvaluationStatus.String(),
		nullDecimal(s.EvaluationScore), s.CreatedAt, s.UpdatedAt,
	)
	return wrapError(err, "class selection", "create")
}

// UpdateSelection writes applicant content and evaluator fields.
func (r *SecurityTargetRepository) UpdateSelection(ctx context.Context, s *securitytarget.ClassSelection) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx, `
		UPDATE class_selections SET
			description = $2, justification = $3, test_approach = $4,
			evaluator_notes = $5, evaluation_status = $6, evaluation_score = $7,
			updated_at = $8
		WHERE id = $1`,
		s.ID, s.Description, s.Justification, s.TestApproach,
		s.EvaluatorNotes, s.EvaluationStatus.String(), nullDecimal(s.EvaluationScore),
		s.UpdatedAt,
	)
	if err != nil {
		return wrapError(err, "class selection", "update")
	}
	if tag.RowsAffected() == 0 {
		return wrapError(ErrNotFound, "class selection", "update")
	}
	return nil
}

// DeleteSelection removes a selection.
func (r *SecurityTargetRepository) DeleteSelection(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx, `DELETE FROM class_selections WHERE id = $1`, id)
	if err != nil {
		return wrapError(err, "class selection", "delete")
	}
	if tag.RowsAffected() == 0 {
		return wrapError(ErrNotFound, "class selection", "delete")
	}
	return nil
}

func scanSecurityTarget(row rowScanner) (*securitytarget.SecurityTarget, error) {
	var (
		st     securitytarget.SecurityTarget
		status string
	)
	if err := row.Scan(&st.ID, &st.ApplicationID, &st.Version, &st.ProductDescription,
		&st.TOEDescription, &status, &st.SubmittedAt, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := securitytarget.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	st.Status = parsed
	return &st, nil
}

func scanSelection(row rowScanner) (*securitytarget.ClassSelection, error) {
	var (
		s      securitytarget.ClassSelection
		status string
		score  decimal.NullDecimal
	)
	if err := row.Scan(&s.ID, &s.SecurityTargetID, &s.ClassID, &s.SubclassID, &s.Description,
		&s.Justification, &s.TestApproach, &s.EvaluatorNotes, &status,
		&score, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := securitytarget.ParseEvaluationStatus(status)
	if err != nil {
		return nil, err
	}
	s.EvaluationStatus = parsed
	if score.Valid {
		v := score.Decimal
		s.EvaluationScore = &v
	}
	return &s, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

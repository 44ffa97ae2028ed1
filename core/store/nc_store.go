package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlRecords struct {
	q       querier
	dialect Dialect
}

type ncStore struct {
	sqlRecords
	db *sql.DB
}

func NewNCStore(db *sql.DB, dialect Dialect) RecordStore {
	return &ncStore{sqlRecords: sqlRecords{q: db, dialect: dialect}, db: db}
}

func (s *ncStore) RunInTx(ctx context.Context, fn func(tx Records) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&sqlRecords{q: tx, dialect: s.dialect}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqlRecords) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, rebind(s.dialect, query), args...)
}

func (s *sqlRecords) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, rebind(s.dialect, query), args...)
}

func (s *sqlRecords) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, rebind(s.dialect, query), args...)
}

const ncColumns = `id, reg_no, title, description, occurred_at, identified_by, area, classification, nc_type, severity, status, created_at, updated_at, version`

func (s *sqlRecords) InsertNC(ctx context.Context, nc *NC) error {
	if nc.Version <= 0 {
		nc.Version = 1
	}
	_, err := s.exec(ctx, `
		INSERT INTO ncs(`+ncColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		nc.ID, nc.RegNo, nc.Title, nc.Description, nc.OccurredAt, nc.IdentifiedBy, nc.Area, nc.Classification, nc.Type, nc.Severity, nc.Status, nc.CreatedAt, nc.UpdatedAt, nc.Version)
	return err
}

func (s *sqlRecords) UpdateNC(ctx context.Context, nc *NC, expectedVersion int) error {
	res, err := s.exec(ctx, `
		UPDATE ncs SET title=?, description=?, occurred_at=?, identified_by=?, area=?, classification=?, nc_type=?, severity=?, status=?, updated_at=?, version=version+1
		WHERE id=? AND version=?`,
		nc.Title, nc.Description, nc.OccurredAt, nc.IdentifiedBy, nc.Area, nc.Classification, nc.Type, nc.Severity, nc.Status, nc.UpdatedAt, nc.ID, expectedVersion)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	nc.Version = expectedVersion + 1
	return nil
}

func (s *sqlRecords) DeleteNC(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `DELETE FROM ncs WHERE id=?`, id)
	return err
}

func (s *sqlRecords) GetNC(ctx context.Context, id string) (*NC, error) {
	row := s.queryRow(ctx, `SELECT `+ncColumns+` FROM ncs WHERE id=?`, id)
	nc, err := scanNC(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &nc, nil
}

func (s *sqlRecords) ListNCs(ctx context.Context, filter NCFilter) ([]NC, error) {
	var clauses []string
	var args []any
	if len(filter.StatusIn) > 0 {
		var in []string
		for _, raw := range filter.StatusIn {
			if strings.TrimSpace(raw) != "" {
				in = append(in, strings.TrimSpace(raw))
			}
		}
		if len(in) > 0 {
			placeholders := strings.TrimRight(strings.Repeat("?,", len(in)), ",")
			clauses = append(clauses, fmt.Sprintf("status IN (%s)", placeholders))
			for _, val := range in {
				args = append(args, val)
			}
		}
	} else if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, filter.Severity)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(reg_no) LIKE ?)")
		q := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, q, q, q)
	}
	query := `SELECT ` + ncColumns + ` FROM ncs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, reg_no DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []NC
	for rows.Next() {
		nc, err := scanNC(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, nc)
	}
	return res, rows.Err()
}

func (s *sqlRecords) NextRegSeq(ctx context.Context, year int) (int64, error) {
	var seq int64
	if err := s.queryRow(ctx, `
		INSERT INTO nc_reg_counters(year, seq)
		VALUES(?,1)
		ON CONFLICT (year)
		DO UPDATE SET seq = nc_reg_counters.seq + 1
		RETURNING seq
	`, year).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// insertOrder names the column that grows with every insert into the
// dependent tables. SQLite keeps an implicit rowid; Postgres uses the seq
// column added by the second migration.
func (s *sqlRecords) insertOrder() string {
	if s.dialect == DialectSQLite {
		return "rowid"
	}
	return "seq"
}

func (s *sqlRecords) InsertAnalysis(ctx context.Context, a *Analysis) error {
	_, err := s.exec(ctx, `
		INSERT INTO nc_analyses(id, nc_id, whys_json, responsible, analyzed_at, created_at)
		VALUES(?,?,?,?,?,?)`,
		a.ID, a.NCID, whysToJSON(a.Whys), a.Responsible, a.AnalyzedAt, a.CreatedAt)
	return err
}

func (s *sqlRecords) GetAnalysisByNC(ctx context.Context, ncID string) (*Analysis, error) {
	row := s.queryRow(ctx, `
		SELECT id, nc_id, whys_json, responsible, analyzed_at, created_at
		FROM nc_analyses WHERE nc_id=? ORDER BY `+s.insertOrder()+` DESC LIMIT 1`, ncID)
	var a Analysis
	var whysRaw string
	if err := row.Scan(&a.ID, &a.NCID, &whysRaw, &a.Responsible, &a.AnalyzedAt, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Whys = parseWhys(whysRaw)
	return &a, nil
}

func (s *sqlRecords) DeleteAnalysesByNC(ctx context.Context, ncID string) (int, error) {
	return s.deleteByNC(ctx, "nc_analyses", ncID)
}

const actionColumns = `id, nc_id, description, responsible, due_date, resources, status, evidence, created_at, updated_at`

func (s *sqlRecords) InsertAction(ctx context.Context, a *Action) error {
	_, err := s.exec(ctx, `
		INSERT INTO nc_actions(`+actionColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.NCID, a.Description, a.Responsible, a.DueDate, a.Resources, a.Status, a.Evidence, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *sqlRecords) UpdateAction(ctx context.Context, a *Action) error {
	res, err := s.exec(ctx, `
		UPDATE nc_actions SET description=?, responsible=?, due_date=?, resources=?, status=?, evidence=?, updated_at=?
		WHERE id=?`,
		a.Description, a.Responsible, a.DueDate, a.Resources, a.Status, a.Evidence, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *sqlRecords) GetAction(ctx context.Context, id string) (*Action, error) {
	row := s.queryRow(ctx, `SELECT `+actionColumns+` FROM nc_actions WHERE id=?`, id)
	a, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *sqlRecords) ListActionsByNC(ctx context.Context, ncID string) ([]Action, error) {
	rows, err := s.query(ctx, `
		SELECT `+actionColumns+` FROM nc_actions WHERE nc_id=?
		ORDER BY due_date ASC, created_at ASC, id ASC`, ncID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *sqlRecords) DeleteActionsByNC(ctx context.Context, ncID string) (int, error) {
	return s.deleteByNC(ctx, "nc_actions", ncID)
}

func (s *sqlRecords) InsertVerification(ctx context.Context, v *Verification) error {
	_, err := s.exec(ctx, `
		INSERT INTO nc_verifications(id, nc_id, verified_at, responsible, resolved, observations, final_status, created_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		v.ID, v.NCID, v.VerifiedAt, v.Responsible, boolToInt(v.Resolved), v.Observations, v.FinalStatus, v.CreatedAt)
	return err
}

func (s *sqlRecords) GetVerificationByNC(ctx context.Context, ncID string) (*Verification, error) {
	row := s.queryRow(ctx, `
		SELECT id, nc_id, verified_at, responsible, resolved, observations, final_status, created_at
		FROM nc_verifications WHERE nc_id=? ORDER BY `+s.insertOrder()+` DESC LIMIT 1`, ncID)
	var v Verification
	var resolved int
	if err := row.Scan(&v.ID, &v.NCID, &v.VerifiedAt, &v.Responsible, &resolved, &v.Observations, &v.FinalStatus, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	v.Resolved = resolved == 1
	return &v, nil
}

func (s *sqlRecords) DeleteVerificationsByNC(ctx context.Context, ncID string) (int, error) {
	return s.deleteByNC(ctx, "nc_verifications", ncID)
}

func (s *sqlRecords) deleteByNC(ctx context.Context, table, ncID string) (int, error) {
	res, err := s.exec(ctx, `DELETE FROM `+table+` WHERE nc_id=?`, ncID)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNC(row rowScanner) (NC, error) {
	var nc NC
	err := row.Scan(&nc.ID, &nc.RegNo, &nc.Title, &nc.Description, &nc.OccurredAt, &nc.IdentifiedBy, &nc.Area, &nc.Classification, &nc.Type, &nc.Severity, &nc.Status, &nc.CreatedAt, &nc.UpdatedAt, &nc.Version)
	return nc, err
}

func scanAction(row rowScanner) (Action, error) {
	var a Action
	err := row.Scan(&a.ID, &a.NCID, &a.Description, &a.Responsible, &a.DueDate, &a.Resources, &a.Status, &a.Evidence, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func whysToJSON(whys []string) string {
	if whys == nil {
		whys = []string{}
	}
	b, err := json.Marshal(whys)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func parseWhys(raw string) []string {
	var whys []string
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	if err := json.Unmarshal([]byte(raw), &whys); err != nil {
		return []string{}
	}
	return whys
}

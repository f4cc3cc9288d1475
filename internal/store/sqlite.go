package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/humtech/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	company        TEXT NOT NULL DEFAULT '',
	company_domain TEXT NOT NULL DEFAULT '',
	industry       TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	employee_count INTEGER NOT NULL DEFAULT 0,
	batch_date     TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS attempts (
	id             TEXT PRIMARY KEY,
	lead_id        TEXT NOT NULL REFERENCES leads(id),
	batch_date     TEXT NOT NULL,
	ledger         TEXT NOT NULL DEFAULT '[]',
	result         TEXT,
	disposition    TEXT,
	outcome        TEXT NOT NULL,
	route_reason   TEXT NOT NULL DEFAULT '',
	prompt_version TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	edited_opener  TEXT,
	removed        INTEGER NOT NULL DEFAULT 0,
	overridden_at  DATETIME,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS suppressions (
	value      TEXT PRIMARY KEY, -- full email or bare company domain
	reason     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT,
	attempt_id TEXT,
	kind       TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_batch_date ON leads(batch_date);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_attempts_lead_id ON attempts(lead_id);
CREATE INDEX IF NOT EXISTS idx_attempts_batch_date ON attempts(batch_date);
CREATE INDEX IF NOT EXISTS idx_attempts_prompt_version ON attempts(prompt_version);
CREATE INDEX IF NOT EXISTS idx_events_lead_id ON events(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusPending
	}
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO leads (id, email, first_name, last_name, title, company, company_domain,
			industry, city, employee_count, batch_date, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			title = excluded.title,
			company = excluded.company,
			company_domain = excluded.company_domain,
			industry = excluded.industry,
			city = excluded.city,
			employee_count = excluded.employee_count,
			batch_date = excluded.batch_date,
			updated_at = excluded.updated_at
		 RETURNING id, status, created_at`,
		lead.ID, lead.Email, lead.FirstName, lead.LastName, lead.Title, lead.Company,
		lead.CompanyDomain, lead.Industry, lead.City, lead.EmployeeCount, lead.BatchDate,
		string(lead.Status), now, now,
	)
	if err := row.Scan(&lead.ID, &lead.Status, &lead.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert lead %s", lead.Email)
	}
	lead.UpdatedAt = now
	return &lead, nil
}

const leadColumns = `id, email, first_name, last_name, title, company, company_domain,
	industry, city, employee_count, batch_date, status, created_at, updated_at`

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, leadID)
	return scanLead(row)
}

func (s *SQLiteStore) LeadsForBatch(ctx context.Context, batchDate string) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE batch_date = ? ORDER BY created_at`, batchDate)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: leads for batch %s", batchDate)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: leads for batch iterate")
}

func (s *SQLiteStore) MarkLeadSent(ctx context.Context, leadID string) error {
	return s.UpdateLeadStatus(ctx, leadID, model.LeadStatusSent)
}

func (s *SQLiteStore) MarkLeadFailed(ctx context.Context, leadID string) error {
	return s.UpdateLeadStatus(ctx, leadID, model.LeadStatusFailed)
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM suppressions WHERE value IN (?, ?)`,
		email, emailDomain(email)).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check suppression %s", email)
	}
	return n > 0, nil
}

func (s *SQLiteStore) AddSuppression(ctx context.Context, value, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suppressions (value, reason, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(value) DO UPDATE SET reason = excluded.reason`,
		value, reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add suppression %s", value)
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, attempt *model.Attempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	ledgerJSON, err := json.Marshal(attempt.Ledger)
	if err != nil {
		return &PersistenceError{Op: "marshal ledger", Err: err}
	}

	var resultJSON any
	if attempt.Result != nil {
		b, err := json.Marshal(attempt.Result)
		if err != nil {
			return &PersistenceError{Op: "marshal result", Err: err}
		}
		resultJSON = string(b)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, lead_id, batch_date, ledger, result, disposition, outcome,
			route_reason, prompt_version, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.LeadID, attempt.BatchDate, string(ledgerJSON), resultJSON,
		nullString(string(attempt.Disposition)), string(attempt.Outcome), attempt.RouteReason,
		attempt.PromptVersion, attempt.Model, attempt.CreatedAt,
	)
	if err != nil {
		return &PersistenceError{Op: "insert attempt", Err: err}
	}
	return nil
}

const attemptColumns = `id, lead_id, batch_date, ledger, result, disposition, outcome,
	route_reason, prompt_version, model, edited_opener, removed, overridden_at, created_at`

func (s *SQLiteStore) GetAttempt(ctx context.Context, attemptID string) (*model.Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, attemptID)
	return scanAttempt(row)
}

func (s *SQLiteStore) LatestAttempt(ctx context.Context, leadID string) (*model.Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE lead_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, leadID)
	return scanAttempt(row)
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE 1=1`
	var args []any

	if filter.LeadID != "" {
		query += ` AND lead_id = ?`
		args = append(args, filter.LeadID)
	}
	if filter.PromptVersion != "" {
		query += ` AND prompt_version = ?`
		args = append(args, filter.PromptVersion)
	}
	if filter.BatchDate != "" {
		query += ` AND batch_date = ?`
		args = append(args, filter.BatchDate)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, eris.Wrap(rows.Err(), "sqlite: list attempts iterate")
}

// latestAttemptFilter restricts a query to each lead's most recent
// attempt within the batch.
const latestAttemptFilter = `NOT EXISTS (
	SELECT 1 FROM attempts newer
	WHERE newer.lead_id = a.lead_id AND newer.batch_date = a.batch_date
	AND (newer.created_at > a.created_at OR (newer.created_at = a.created_at AND newer.id > a.id))
)`

func (s *SQLiteStore) BatchReview(ctx context.Context, batchDate string) ([]model.ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.lead_id, a.batch_date, a.ledger, a.result, a.disposition, a.outcome,
			a.route_reason, a.prompt_version, a.model, a.edited_opener, a.removed, a.overridden_at, a.created_at,
			l.id, l.email, l.first_name, l.last_name, l.title, l.company, l.company_domain,
			l.industry, l.city, l.employee_count, l.batch_date, l.status, l.created_at, l.updated_at
		 FROM attempts a
		 JOIN leads l ON l.id = a.lead_id
		 WHERE a.batch_date = ? AND a.removed = 0
		 AND a.outcome IN ('auto_send', 'needs_review', 'blocked')
		 AND `+latestAttemptFilter+`
		 ORDER BY
			CASE a.outcome
				WHEN 'needs_review' THEN 0
				WHEN 'auto_send' THEN 1
				WHEN 'blocked' THEN 2
			END,
			json_extract(a.result, '$.confidence_score') DESC`,
		batchDate,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: batch review %s", batchDate)
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		var (
			item        model.ReviewItem
			ledgerJSON  string
			resultJSON  sql.NullString
			disposition sql.NullString
			edited      sql.NullString
			removed     int
			overridden  sql.NullTime
		)
		a := &item.Attempt
		l := &item.Lead
		err := rows.Scan(
			&a.ID, &a.LeadID, &a.BatchDate, &ledgerJSON, &resultJSON, &disposition, &a.Outcome,
			&a.RouteReason, &a.PromptVersion, &a.Model, &edited, &removed, &overridden, &a.CreatedAt,
			&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Title, &l.Company, &l.CompanyDomain,
			&l.Industry, &l.City, &l.EmployeeCount, &l.BatchDate, &l.Status, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review item")
		}
		if err := hydrateAttempt(a, ledgerJSON, resultJSON, disposition, edited, removed, overridden); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: batch review iterate")
}

func (s *SQLiteStore) BatchCounts(ctx context.Context, batchDate string) (*model.BatchCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.outcome, COUNT(1) FROM attempts a
		 WHERE a.batch_date = ? AND a.removed = 0 AND `+latestAttemptFilter+`
		 GROUP BY a.outcome`,
		batchDate,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: batch counts %s", batchDate)
	}
	defer rows.Close()

	var counts model.BatchCounts
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch count")
		}
		switch model.Outcome(outcome) {
		case model.OutcomeAutoSend:
			counts.AutoSend = n
		case model.OutcomeNeedsReview:
			counts.NeedsReview = n
		case model.OutcomeBlocked:
			counts.Blocked = n
		case model.OutcomeFailed:
			counts.Failed = n
		}
	}
	return &counts, eris.Wrap(rows.Err(), "sqlite: batch counts iterate")
}

func (s *SQLiteStore) OverrideOpener(ctx context.Context, attemptID, editedOpener string) error {
	return s.override(ctx, attemptID, "override opener", model.EventEdited, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx,
			`UPDATE attempts SET edited_opener = ?, overridden_at = ? WHERE id = ?`,
			editedOpener, time.Now().UTC(), attemptID,
		)
	})
}

func (s *SQLiteStore) RemoveAttempt(ctx context.Context, attemptID string) error {
	return s.override(ctx, attemptID, "remove attempt", model.EventRemoved, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx,
			`UPDATE attempts SET removed = 1, overridden_at = ? WHERE id = ?`,
			time.Now().UTC(), attemptID,
		)
	})
}

// override guards both human overrides behind the already-sent check.
// An attempt whose lead has shipped is immutable.
func (s *SQLiteStore) override(ctx context.Context, attemptID, op string, kind model.EventKind, exec func(context.Context) (sql.Result, error)) error {
	var leadID, leadStatus string
	err := s.db.QueryRowContext(ctx,
		`SELECT l.id, l.status FROM attempts a JOIN leads l ON l.id = a.lead_id WHERE a.id = ?`,
		attemptID,
	).Scan(&leadID, &leadStatus)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s %s", op, attemptID)
	}
	if model.LeadStatus(leadStatus) == model.LeadStatusSent {
		return ErrAlreadySent
	}

	res, err := exec(ctx)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s %s", op, attemptID)
	}
	if err := checkRowsAffected(res, "attempt", attemptID); err != nil {
		return err
	}

	// Best-effort audit event; the override itself already succeeded.
	if err := s.LogEvent(ctx, model.Event{LeadID: leadID, AttemptID: attemptID, Kind: kind}); err != nil {
		zap.L().Warn("override event not recorded",
			zap.String("attempt", attemptID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *SQLiteStore) SendableLeads(ctx context.Context, batchDate string) ([]model.DispatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, a.id, l.email, l.first_name, l.last_name, l.company,
			COALESCE(a.edited_opener, json_extract(a.result, '$.opener_first_line')),
			json_extract(a.result, '$.rung'),
			json_extract(a.result, '$.confidence_score'),
			COALESCE(json_extract(a.result, '$.evidence_used'), '[]'),
			a.disposition
		 FROM attempts a
		 JOIN leads l ON l.id = a.lead_id
		 WHERE a.batch_date = ? AND a.removed = 0
		 AND a.outcome IN ('auto_send', 'needs_review')
		 AND l.status = 'personalised'
		 AND `+latestAttemptFilter+`
		 ORDER BY a.created_at`,
		batchDate,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: sendable leads %s", batchDate)
	}
	defer rows.Close()

	var records []model.DispatchRecord
	for rows.Next() {
		var (
			rec          model.DispatchRecord
			evidenceJSON string
		)
		err := rows.Scan(&rec.LeadID, &rec.AttemptID, &rec.Email, &rec.FirstName, &rec.LastName,
			&rec.Company, &rec.Opener, &rec.Rung, &rec.Confidence, &evidenceJSON, &rec.Disposition)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dispatch record")
		}
		if err := json.Unmarshal([]byte(evidenceJSON), &rec.Evidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dispatch evidence")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: sendable leads iterate")
}

func (s *SQLiteStore) LogEvent(ctx context.Context, event model.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, lead_id, attempt_id, kind, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, nullString(event.LeadID), nullString(event.AttemptID), string(event.Kind),
		event.Detail, event.CreatedAt,
	)
	if err != nil {
		return &PersistenceError{Op: "insert event", Err: err}
	}
	return nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Title, &l.Company,
		&l.CompanyDomain, &l.Industry, &l.City, &l.EmployeeCount, &l.BatchDate, &l.Status,
		&l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan lead")
	}
	return &l, nil
}

func scanAttempt(row scannable) (*model.Attempt, error) {
	var (
		a           model.Attempt
		ledgerJSON  string
		resultJSON  sql.NullString
		disposition sql.NullString
		edited      sql.NullString
		removed     int
		overridden  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.LeadID, &a.BatchDate, &ledgerJSON, &resultJSON, &disposition,
		&a.Outcome, &a.RouteReason, &a.PromptVersion, &a.Model, &edited, &removed, &overridden,
		&a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan attempt")
	}
	if err := hydrateAttempt(&a, ledgerJSON, resultJSON, disposition, edited, removed, overridden); err != nil {
		return nil, err
	}
	return &a, nil
}

func hydrateAttempt(a *model.Attempt, ledgerJSON string, resultJSON, disposition, edited sql.NullString, removed int, overridden sql.NullTime) error {
	if err := json.Unmarshal([]byte(ledgerJSON), &a.Ledger); err != nil {
		return eris.Wrap(err, "unmarshal attempt ledger")
	}
	if resultJSON.Valid {
		a.Result = &model.PersonalisationResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), a.Result); err != nil {
			return eris.Wrap(err, "unmarshal attempt result")
		}
	}
	if disposition.Valid {
		a.Disposition = model.Disposition(disposition.String)
	}
	if edited.Valid || removed != 0 {
		a.Override = &model.Override{
			EditedOpener: edited.String,
			Removed:      removed != 0,
		}
		if overridden.Valid {
			a.Override.OverriddenAt = overridden.Time
		}
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/db"
	"github.com/humtech/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot per-lead pipeline path.
var preparedStatements = map[string]string{
	"insert_attempt": `INSERT INTO attempts (id, lead_id, batch_date, ledger, result, disposition, outcome, route_reason, prompt_version, model, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"check_suppression":  `SELECT COUNT(1) FROM suppressions WHERE value IN ($1, $2)`,
	"update_lead_status": `UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`,
	"insert_event":       `INSERT INTO events (id, lead_id, attempt_id, kind, detail, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying pool for bulk operations such as lead
// import.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS attempts (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id        TEXT NOT NULL REFERENCES leads(id),
	batch_date     TEXT NOT NULL,
	ledger         JSONB NOT NULL DEFAULT '[]',
	result         JSONB,
	disposition    TEXT,
	outcome        TEXT NOT NULL,
	route_reason   TEXT NOT NULL DEFAULT '',
	prompt_version TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	edited_opener  TEXT,
	removed        BOOLEAN NOT NULL DEFAULT false,
	overridden_at  TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS suppressions (
	value      TEXT PRIMARY KEY, -- full email or bare company domain
	reason     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id    TEXT,
	attempt_id TEXT,
	kind       TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_batch_date ON leads(batch_date);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_attempts_lead_id ON attempts(lead_id);
CREATE INDEX IF NOT EXISTS idx_attempts_batch_date ON attempts(batch_date);
CREATE INDEX IF NOT EXISTS idx_attempts_prompt_version ON attempts(prompt_version);
CREATE INDEX IF NOT EXISTS idx_events_lead_id ON events(lead_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusPending
	}
	now := time.Now().UTC()

	row := s.pool.QueryRow(ctx,
		`INSERT INTO leads (id, email, first_name, last_name, title, company, company_domain,
			industry, city, employee_count, batch_date, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			company_domain = EXCLUDED.company_domain,
			industry = EXCLUDED.industry,
			city = EXCLUDED.city,
			employee_count = EXCLUDED.employee_count,
			batch_date = EXCLUDED.batch_date,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, status, created_at`,
		lead.ID, lead.Email, lead.FirstName, lead.LastName, lead.Title, lead.Company,
		lead.CompanyDomain, lead.Industry, lead.City, lead.EmployeeCount, lead.BatchDate,
		string(lead.Status), now, now,
	)
	if err := row.Scan(&lead.ID, &lead.Status, &lead.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert lead %s", lead.Email)
	}
	lead.UpdatedAt = now
	return &lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, leadID)
	return scanLeadPG(row)
}

func (s *PostgresStore) LeadsForBatch(ctx context.Context, batchDate string) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE batch_date = $1 ORDER BY created_at`, batchDate)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: leads for batch %s", batchDate)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLeadPG(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: leads for batch iterate")
}

func (s *PostgresStore) MarkLeadSent(ctx context.Context, leadID string) error {
	return s.UpdateLeadStatus(ctx, leadID, model.LeadStatusSent)
}

func (s *PostgresStore) MarkLeadFailed(ctx context.Context, leadID string) error {
	return s.UpdateLeadStatus(ctx, leadID, model.LeadStatusFailed)
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	return nil
}

func (s *PostgresStore) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM suppressions WHERE value IN ($1, $2)`,
		email, emailDomain(email)).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: check suppression %s", email)
	}
	return n > 0, nil
}

func (s *PostgresStore) AddSuppression(ctx context.Context, value, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO suppressions (value, reason, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (value) DO UPDATE SET reason = EXCLUDED.reason`,
		value, reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: add suppression %s", value)
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, attempt *model.Attempt) error {
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

	var resultJSON []byte
	if attempt.Result != nil {
		resultJSON, err = json.Marshal(attempt.Result)
		if err != nil {
			return &PersistenceError{Op: "marshal result", Err: err}
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO attempts (id, lead_id, batch_date, ledger, result, disposition, outcome,
			route_reason, prompt_version, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		attempt.ID, attempt.LeadID, attempt.BatchDate, ledgerJSON, resultJSON,
		nullString(string(attempt.Disposition)), string(attempt.Outcome), attempt.RouteReason,
		attempt.PromptVersion, attempt.Model, attempt.CreatedAt,
	)
	if err != nil {
		return &PersistenceError{Op: "insert attempt", Err: err}
	}
	return nil
}

func (s *PostgresStore) GetAttempt(ctx context.Context, attemptID string) (*model.Attempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, attemptID)
	return scanAttemptPG(row)
}

func (s *PostgresStore) LatestAttempt(ctx context.Context, leadID string) (*model.Attempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE lead_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT 1`, leadID)
	return scanAttemptPG(row)
}

func (s *PostgresStore) ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE 1=1`
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.LeadID != "" {
		query += ` AND lead_id = ` + arg(filter.LeadID)
	}
	if filter.PromptVersion != "" {
		query += ` AND prompt_version = ` + arg(filter.PromptVersion)
	}
	if filter.BatchDate != "" {
		query += ` AND batch_date = ` + arg(filter.BatchDate)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)

	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list attempts")
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttemptPG(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, eris.Wrap(rows.Err(), "postgres: list attempts iterate")
}

func (s *PostgresStore) BatchReview(ctx context.Context, batchDate string) ([]model.ReviewItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.lead_id, a.batch_date, a.ledger, a.result, a.disposition, a.outcome,
			a.route_reason, a.prompt_version, a.model, a.edited_opener, a.removed, a.overridden_at, a.created_at,
			l.id, l.email, l.first_name, l.last_name, l.title, l.company, l.company_domain,
			l.industry, l.city, l.employee_count, l.batch_date, l.status, l.created_at, l.updated_at
		 FROM attempts a
		 JOIN leads l ON l.id = a.lead_id
		 WHERE a.batch_date = $1 AND NOT a.removed
		 AND a.outcome IN ('auto_send', 'needs_review', 'blocked')
		 AND `+latestAttemptFilterPG+`
		 ORDER BY
			CASE a.outcome
				WHEN 'needs_review' THEN 0
				WHEN 'auto_send' THEN 1
				WHEN 'blocked' THEN 2
			END,
			(a.result->>'confidence_score')::float8 DESC`,
		batchDate,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: batch review %s", batchDate)
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		var (
			item        model.ReviewItem
			ledgerJSON  []byte
			resultJSON  []byte
			disposition *string
			edited      *string
			removed     bool
			overridden  *time.Time
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
			return nil, eris.Wrap(err, "postgres: scan review item")
		}
		if err := hydrateAttemptPG(a, ledgerJSON, resultJSON, disposition, edited, removed, overridden); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, eris.Wrap(rows.Err(), "postgres: batch review iterate")
}

// latestAttemptFilterPG restricts a query aliased "a" to each lead's
// most recent attempt within the batch.
const latestAttemptFilterPG = `NOT EXISTS (
	SELECT 1 FROM attempts newer
	WHERE newer.lead_id = a.lead_id AND newer.batch_date = a.batch_date
	AND (newer.created_at > a.created_at OR (newer.created_at = a.created_at AND newer.id > a.id))
)`

func (s *PostgresStore) BatchCounts(ctx context.Context, batchDate string) (*model.BatchCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.outcome, COUNT(1) FROM attempts a
		 WHERE a.batch_date = $1 AND NOT a.removed AND `+latestAttemptFilterPG+`
		 GROUP BY a.outcome`,
		batchDate,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: batch counts %s", batchDate)
	}
	defer rows.Close()

	var counts model.BatchCounts
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch count")
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
	return &counts, eris.Wrap(rows.Err(), "postgres: batch counts iterate")
}

func (s *PostgresStore) OverrideOpener(ctx context.Context, attemptID, editedOpener string) error {
	return s.override(ctx, attemptID, "override opener", model.EventEdited,
		`UPDATE attempts SET edited_opener = $1, overridden_at = $2 WHERE id = $3`,
		editedOpener, time.Now().UTC(), attemptID)
}

func (s *PostgresStore) RemoveAttempt(ctx context.Context, attemptID string) error {
	return s.override(ctx, attemptID, "remove attempt", model.EventRemoved,
		`UPDATE attempts SET removed = true, overridden_at = $1 WHERE id = $2`,
		time.Now().UTC(), attemptID)
}

func (s *PostgresStore) override(ctx context.Context, attemptID, op string, kind model.EventKind, sql string, args ...any) error {
	var leadID, leadStatus string
	err := s.pool.QueryRow(ctx,
		`SELECT l.id, l.status FROM attempts a JOIN leads l ON l.id = a.lead_id WHERE a.id = $1`,
		attemptID,
	).Scan(&leadID, &leadStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: %s %s", op, attemptID)
	}
	if model.LeadStatus(leadStatus) == model.LeadStatusSent {
		return ErrAlreadySent
	}

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: %s %s", op, attemptID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "attempt %s", attemptID)
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

func (s *PostgresStore) SendableLeads(ctx context.Context, batchDate string) ([]model.DispatchRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.id, a.id, l.email, l.first_name, l.last_name, l.company,
			COALESCE(a.edited_opener, a.result->>'opener_first_line'),
			(a.result->>'rung')::int,
			(a.result->>'confidence_score')::float8,
			COALESCE(a.result->'evidence_used', '[]'::jsonb),
			a.disposition
		 FROM attempts a
		 JOIN leads l ON l.id = a.lead_id
		 WHERE a.batch_date = $1 AND NOT a.removed
		 AND a.outcome IN ('auto_send', 'needs_review')
		 AND l.status = 'personalised'
		 AND `+latestAttemptFilterPG+`
		 ORDER BY a.created_at`,
		batchDate,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: sendable leads %s", batchDate)
	}
	defer rows.Close()

	var records []model.DispatchRecord
	for rows.Next() {
		var (
			rec          model.DispatchRecord
			evidenceJSON []byte
		)
		err := rows.Scan(&rec.LeadID, &rec.AttemptID, &rec.Email, &rec.FirstName, &rec.LastName,
			&rec.Company, &rec.Opener, &rec.Rung, &rec.Confidence, &evidenceJSON, &rec.Disposition)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan dispatch record")
		}
		if err := json.Unmarshal(evidenceJSON, &rec.Evidence); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dispatch evidence")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: sendable leads iterate")
}

func (s *PostgresStore) LogEvent(ctx context.Context, event model.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, lead_id, attempt_id, kind, detail, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, nullString(event.LeadID), nullString(event.AttemptID), string(event.Kind),
		event.Detail, event.CreatedAt,
	)
	if err != nil {
		return &PersistenceError{Op: "insert event", Err: err}
	}
	return nil
}

// helpers

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanLeadPG(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Title, &l.Company,
		&l.CompanyDomain, &l.Industry, &l.City, &l.EmployeeCount, &l.BatchDate, &l.Status,
		&l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}
	return &l, nil
}

func scanAttemptPG(row pgx.Row) (*model.Attempt, error) {
	var (
		a           model.Attempt
		ledgerJSON  []byte
		resultJSON  []byte
		disposition *string
		edited      *string
		removed     bool
		overridden  *time.Time
	)
	err := row.Scan(&a.ID, &a.LeadID, &a.BatchDate, &ledgerJSON, &resultJSON, &disposition,
		&a.Outcome, &a.RouteReason, &a.PromptVersion, &a.Model, &edited, &removed, &overridden,
		&a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan attempt")
	}
	if err := hydrateAttemptPG(&a, ledgerJSON, resultJSON, disposition, edited, removed, overridden); err != nil {
		return nil, err
	}
	return &a, nil
}

func hydrateAttemptPG(a *model.Attempt, ledgerJSON, resultJSON []byte, disposition, edited *string, removed bool, overridden *time.Time) error {
	if err := json.Unmarshal(ledgerJSON, &a.Ledger); err != nil {
		return eris.Wrap(err, "postgres: unmarshal attempt ledger")
	}
	if len(resultJSON) > 0 {
		a.Result = &model.PersonalisationResult{}
		if err := json.Unmarshal(resultJSON, a.Result); err != nil {
			return eris.Wrap(err, "postgres: unmarshal attempt result")
		}
	}
	if disposition != nil {
		a.Disposition = model.Disposition(*disposition)
	}
	if edited != nil || removed {
		a.Override = &model.Override{Removed: removed}
		if edited != nil {
			a.Override.EditedOpener = *edited
		}
		if overridden != nil {
			a.Override.OverriddenAt = *overridden
		}
	}
	return nil
}

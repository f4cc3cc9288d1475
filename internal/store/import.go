package store

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/db"
	"github.com/humtech/outreach-cli/internal/model"
)

// ParseLeadsCSV reads leads from a header-first CSV. Column names are
// matched case-insensitively against the lead field names. Rows with no
// email are skipped, and duplicate emails within the file keep the
// first occurrence. Every parsed lead gets batchDate.
func ParseLeadsCSV(r io.Reader, batchDate string) ([]model.Lead, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "store: read leads csv")
	}

	if len(records) < 2 {
		return nil, nil // header only or empty
	}

	headers := records[0]
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	seen := make(map[string]struct{})
	var leads []model.Lead
	for _, row := range records[1:] {
		email := strings.ToLower(field(row, "email"))
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		count, _ := strconv.Atoi(field(row, "employee_count"))
		leads = append(leads, model.Lead{
			Email:         email,
			FirstName:     field(row, "first_name"),
			LastName:      field(row, "last_name"),
			Title:         field(row, "title"),
			Company:       field(row, "company"),
			CompanyDomain: field(row, "company_domain"),
			Industry:      field(row, "industry"),
			City:          field(row, "city"),
			EmployeeCount: count,
			BatchDate:     batchDate,
		})
	}

	return leads, nil
}

var leadImportConfig = db.UpsertConfig{
	Table: "leads",
	Columns: []string{
		"id", "email", "first_name", "last_name", "title", "company",
		"company_domain", "industry", "city", "employee_count", "batch_date",
	},
	ConflictKeys: []string{"email"},
	UpdateCols: []string{
		"first_name", "last_name", "title", "company", "company_domain",
		"industry", "city", "employee_count", "batch_date",
	},
}

// ImportLeads loads leads into the store. Postgres gets a single bulk
// upsert through a temp table; SQLite falls back to row-at-a-time
// upserts. Returns the number of leads written.
func ImportLeads(ctx context.Context, st Store, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	if ps, ok := st.(*PostgresStore); ok {
		rows := make([][]any, 0, len(leads))
		for _, l := range leads {
			id := l.ID
			if id == "" {
				id = uuid.New().String()
			}
			rows = append(rows, []any{
				id, l.Email, l.FirstName, l.LastName, l.Title, l.Company,
				l.CompanyDomain, l.Industry, l.City, l.EmployeeCount, l.BatchDate,
			})
		}
		n, err := db.BulkUpsert(ctx, ps.Pool(), leadImportConfig, rows)
		if err != nil {
			return 0, eris.Wrap(err, "store: bulk import leads")
		}
		return int(n), nil
	}

	imported := 0
	for _, l := range leads {
		if ctx.Err() != nil {
			return imported, eris.Wrap(ctx.Err(), "store: import cancelled")
		}
		if _, err := st.UpsertLead(ctx, l); err != nil {
			zap.L().Warn("lead import skipped",
				zap.String("email", l.Email),
				zap.Error(err),
			)
			continue
		}
		imported++
	}
	return imported, nil
}

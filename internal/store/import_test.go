package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leadsCSV = `email,first_name,last_name,company,title,industry,employee_count
jo@buildco.example,Jo,Smith,BuildCo,Owner,construction,12
,Nobody,,NoEmail Ltd,,,
sam@plumbfast.example,Sam,Reed,PlumbFast,Director,plumbing,7
JO@buildco.example,Jo,Smith,BuildCo,Owner,construction,12
`

func TestParseLeadsCSV(t *testing.T) {
	leads, err := ParseLeadsCSV(strings.NewReader(leadsCSV), "2026-08-28")
	require.NoError(t, err)

	// No-email row skipped, duplicate email keeps the first occurrence.
	require.Len(t, leads, 2)
	assert.Equal(t, "jo@buildco.example", leads[0].Email)
	assert.Equal(t, "BuildCo", leads[0].Company)
	assert.Equal(t, 12, leads[0].EmployeeCount)
	assert.Equal(t, "2026-08-28", leads[0].BatchDate)
	assert.Equal(t, "sam@plumbfast.example", leads[1].Email)
}

func TestParseLeadsCSV_HeaderOnly(t *testing.T) {
	leads, err := ParseLeadsCSV(strings.NewReader("email,first_name\n"), "2026-08-28")
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestImportLeads_SQLite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	leads, err := ParseLeadsCSV(strings.NewReader(leadsCSV), "2026-08-28")
	require.NoError(t, err)

	imported, err := ImportLeads(ctx, st, leads)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	stored, err := st.LeadsForBatch(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestImportLeads_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	imported, err := ImportLeads(context.Background(), st, nil)
	require.NoError(t, err)
	assert.Zero(t, imported)
}

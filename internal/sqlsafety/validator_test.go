package sqlsafety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tenant = "rest-001"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr error
	}{
		{
			name: "plain tenant select",
			sql:  "SELECT * FROM invoices WHERE tenant_id = 'rest-001' ORDER BY invoice_date DESC LIMIT 1",
		},
		{
			name: "qualified tenant filter and trailing terminator",
			sql:  "select i.id from invoices i where i.tenant_id='rest-001';",
		},
		{
			name: "semicolon inside literal is not a terminator",
			sql:  "SELECT * FROM products WHERE tenant_id = 'rest-001' AND description ILIKE '%a;b%'",
		},
		{
			name: "column names containing keywords are allowed",
			sql:  "SELECT created_at, updated_at FROM invoices WHERE tenant_id = 'rest-001'",
		},
		{
			name:    "not a select",
			sql:     "WITH x AS (SELECT 1) SELECT * FROM x WHERE tenant_id = 'rest-001'",
			wantErr: ErrNotSelect,
		},
		{
			name:    "missing tenant filter",
			sql:     "SELECT * FROM invoices",
			wantErr: ErrMissingTenantFilter,
		},
		{
			name:    "other tenant",
			sql:     "SELECT * FROM invoices WHERE tenant_id = 'rest-0012'",
			wantErr: ErrMissingTenantFilter,
		},
		{
			name:    "tenant filter that is not equality",
			sql:     "SELECT * FROM invoices WHERE tenant_id <> 'rest-001'",
			wantErr: ErrMissingTenantFilter,
		},
		{
			name:    "stacked delete",
			sql:     "SELECT * FROM invoices WHERE tenant_id = 'rest-001'; DELETE FROM invoices",
			wantErr: ErrForbiddenKeyword,
		},
		{
			name:    "drop in any case",
			sql:     "SELECT 1 FROM invoices WHERE tenant_id = 'rest-001' AND 1=(select 1 from pg_class) -- DrOp",
			wantErr: ErrForbiddenKeyword,
		},
		{
			name:    "two statements",
			sql:     "SELECT 1 FROM invoices WHERE tenant_id = 'rest-001'; SELECT 2 FROM invoices WHERE tenant_id = 'rest-001';",
			wantErr: ErrMultipleStatements,
		},
		{
			name:    "terminator before the end",
			sql:     "SELECT 1 FROM invoices WHERE tenant_id = 'rest-001'; --",
			wantErr: ErrMultipleStatements,
		},
		{
			name:    "tenant filter only inside a line comment",
			sql:     "SELECT * FROM invoices -- tenant_id = 'rest-001'",
			wantErr: ErrComment,
		},
		{
			name:    "block comment hiding the filter",
			sql:     "SELECT * FROM invoices /* WHERE tenant_id = 'rest-001' */",
			wantErr: ErrComment,
		},
		{
			name:    "comment alongside a real filter",
			sql:     "SELECT * FROM invoices WHERE tenant_id = 'rest-001' -- latest",
			wantErr: ErrComment,
		},
		{
			name: "comment markers inside a literal",
			sql:  "SELECT * FROM products WHERE tenant_id = 'rest-001' AND description ILIKE '%--/*%'",
		},
		{
			name:    "empty",
			sql:     "   ",
			wantErr: ErrEmptyStatement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sql, tenant)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.True(t, IsSafe(tt.sql, tenant))
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, IsSafe(tt.sql, tenant))
		})
	}
}

func TestValidate_RequiresTenant(t *testing.T) {
	assert.ErrorIs(t, Validate("SELECT 1 FROM invoices WHERE tenant_id = ''", ""), ErrMissingTenant)
}

func TestValidate_EveryForbiddenKeyword(t *testing.T) {
	for _, kw := range ForbiddenKeywords {
		sql := "SELECT * FROM invoices WHERE tenant_id = 'rest-001' AND note = " + kw
		assert.ErrorIs(t, Validate(sql, tenant), ErrForbiddenKeyword, kw)
	}
}

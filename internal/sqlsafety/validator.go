// Package sqlsafety is the gate every statement passes before it may reach the
// tenant datastore.
//
// It is a conservative heuristic, not a SQL parser. It rejects anything that
// does not look like a single tenant-filtered SELECT and accepts false
// negatives (a harmless statement rejected) rather than false positives.
package sqlsafety

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmptyStatement      = errors.New("empty statement")
	ErrMissingTenant       = errors.New("tenant id is required")
	ErrNotSelect           = errors.New("statement must begin with SELECT")
	ErrMissingTenantFilter = errors.New("statement lacks an equality filter on the tenant id")
	ErrForbiddenKeyword    = errors.New("statement contains a forbidden keyword")
	ErrMultipleStatements  = errors.New("statement contains more than one terminator or a terminator before the end")
	ErrComment             = errors.New("statement contains a comment")
)

// ForbiddenKeywords are matched as whole words, case-insensitively.
var ForbiddenKeywords = []string{
	"drop", "delete", "insert", "update", "create", "alter", "truncate", "grant", "revoke",
}

var (
	selectPrefix  = regexp.MustCompile(`(?is)^\s*select\b`)
	forbiddenExpr = regexp.MustCompile(`(?i)\b(` + strings.Join(ForbiddenKeywords, "|") + `)\b`)
)

// Validate returns nil when sql is acceptable for tenantID, otherwise one of
// the package errors wrapped with detail.
func Validate(sql, tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return ErrMissingTenant
	}
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ErrEmptyStatement
	}

	if !selectPrefix.MatchString(trimmed) {
		return ErrNotSelect
	}

	if kw := forbiddenExpr.FindString(trimmed); kw != "" {
		return fmt.Errorf("%w: %s", ErrForbiddenKeyword, strings.ToLower(kw))
	}

	if err := scanOutsideLiterals(trimmed); err != nil {
		return err
	}

	if !tenantFilter(tenantID).MatchString(trimmed) {
		return fmt.Errorf("%w: %s", ErrMissingTenantFilter, tenantID)
	}

	return nil
}

func IsSafe(sql, tenantID string) bool {
	return Validate(sql, tenantID) == nil
}

// tenantFilter matches tenant_id = '<id>', optionally qualified by a table
// alias such as i.tenant_id.
func tenantFilter(tenantID string) *regexp.Regexp {
	literal := regexp.QuoteMeta(strings.ReplaceAll(tenantID, "'", "''"))
	return regexp.MustCompile(`(?i)(^|[^a-z0-9_])([a-z_][a-z0-9_]*\.)?tenant_id\s*=\s*'` + literal + `'`)
}

// scanOutsideLiterals allows at most one ';' outside string literals, and only
// as the final character, and rejects any comment outside string literals.
func scanOutsideLiterals(sql string) error {
	inLiteral := false
	comment := false
	terminators := 0
	last := -1

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'':
			if inLiteral && i+1 < len(runes) && runes[i+1] == '\'' {
				i++
				continue
			}
			inLiteral = !inLiteral
		case inLiteral:
		case r == ';':
			terminators++
			last = i
		case opensComment(runes, i):
			comment = true
		}
	}

	if terminators > 1 || (terminators == 1 && last != len(runes)-1) {
		return ErrMultipleStatements
	}
	if comment {
		return ErrComment
	}
	return nil
}

func opensComment(runes []rune, i int) bool {
	if i+1 >= len(runes) {
		return false
	}
	switch runes[i] {
	case '-':
		return runes[i+1] == '-'
	case '/':
		return runes[i+1] == '*'
	}
	return false
}

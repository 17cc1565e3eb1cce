// Package sqlxrepos implements the repositories on PostgreSQL, with sqlx and squirrel.
package sqlxrepos

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/visalms/lms/core"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// psql builds postgres statements ($n placeholders).
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// pqErrorCode returns the SQLSTATE code & constraint of a postgres error.
func pqErrorCode(err error) (code, constraint string) {
	if pqErr, ok := err.(*pq.Error); ok {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pqErrorCode(err)
	return code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	code, _ := pqErrorCode(err)
	return code == foreignKeyViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// contains returns a LIKE pattern matching s anywhere.
func contains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// orderBy translates orderings to ORDER BY clauses, using columns to map fields to columns.
// Unknown fields are ignored.
func orderBy(ordering []core.DBOrdering, columns map[string]string, defaults ...string) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			if ord.Ascending {
				clauses = append(clauses, col+" ASC")
			} else {
				clauses = append(clauses, col+" DESC")
			}
		}
	}
	if len(clauses) == 0 {
		return defaults
	}
	return clauses
}

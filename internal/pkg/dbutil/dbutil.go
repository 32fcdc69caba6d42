package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var mysqlLimitPair = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize converts a gendry-built query to Postgres form. gendry emits
// MySQL syntax: the `LIMIT offset, count` pair becomes `LIMIT count OFFSET
// offset` (with the two args swapped to match) and every `?` placeholder is
// rebound to `$n`.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	if loc := mysqlLimitPair.FindStringIndex(query); loc != nil {
		// the limit pair's args sit after every placeholder preceding it
		first := strings.Count(query[:loc[0]], "?")
		if first+1 < len(args) {
			args[first], args[first+1] = args[first+1], args[first]
			query = query[:loc[0]] + "LIMIT ? OFFSET ?" + query[loc[1]:]
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// IsConflict reports whether err is a Postgres unique violation, the
// backstop for the content_hash dedup race.
func IsConflict(err error) bool {
	pgErr, ok := err.(*pq.Error)
	return ok && pgErr.Code == "23505"
}

// Package ddl implements the minimal DDL-touch parser the MySQL CDC
// extractor needs: enough of a Query event's SQL text to recover
// which (schema, table) it touches, so metadata invalidation (spec
// §4.4.2) has a real parser behind it rather than a mock.
//
// This is not a SQL parser. It recognizes the handful of statement
// shapes that actually require metadata invalidation
// (CREATE/ALTER/DROP/RENAME/TRUNCATE TABLE) and gives up on anything
// else, which the caller treats the same as a parse failure: invalidate
// every cached table rather than guess wrong.
package ddl

import (
	"regexp"
	"strings"

	"github.com/pingcap/errors"
)

// Touch names the (schema, table) pairs a DDL statement affects. Most
// statements touch exactly one; RENAME TABLE can touch several in one
// statement.
type Touch struct {
	Schema string
	Table  string
}

// ErrUnrecognized is returned when the statement does not match any
// known DDL shape. Callers should treat this the same as spec
// §4.4.2's "parse DDL ... or all if parse fails" rule: invalidate the
// whole metadata cache rather than act on a partial guess.
var ErrUnrecognized = errors.New("ddl: statement not recognized")

var (
	createTableRe = regexp.MustCompile(`(?is)^\s*CREATE\s+(?:TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + identRe)
	dropTableRe   = regexp.MustCompile(`(?is)^\s*DROP\s+(?:TEMPORARY\s+)?TABLE\s+(?:IF\s+EXISTS\s+)?` + identListRe)
	alterTableRe  = regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+` + identRe)
	truncateRe    = regexp.MustCompile(`(?is)^\s*TRUNCATE\s+(?:TABLE\s+)?` + identRe)
	renameTableRe = regexp.MustCompile(`(?is)^\s*RENAME\s+TABLE\s+(.+)$`)
	renamePairRe  = regexp.MustCompile(`(?is)` + identRe + `\s+TO\s+` + identRe)
)

// identRe captures an optional backtick- or unquoted `schema.` prefix
// followed by a backtick- or unquoted table name.
const identRe = `(?:` + "`" + `?([A-Za-z0-9_$]+)` + "`" + `?\s*\.\s*)?` + "`" + `?([A-Za-z0-9_$]+)` + "`" + `?`

// identListRe matches one or more comma-separated identRe groups,
// used by DROP TABLE a, b, c. Only the first pair is captured by the
// outer regex; parseDropList re-splits the statement to recover the
// rest.
const identListRe = identRe

// Parse recovers the (schema, table) touches of one DDL statement.
// defaultSchema fills in the schema part for statements that name a
// bare table (MySQL resolves those against the connection's current
// database, which the binlog stream reports alongside the Query
// event).
func Parse(sql, defaultSchema string) ([]Touch, error) {
	sql = strings.TrimSpace(sql)

	if m := renameTableRe.FindStringSubmatch(sql); m != nil {
		return parseRename(m[1], defaultSchema)
	}
	if m := createTableRe.FindStringSubmatch(sql); m != nil {
		return []Touch{touchFrom(m, defaultSchema)}, nil
	}
	if m := alterTableRe.FindStringSubmatch(sql); m != nil {
		return []Touch{touchFrom(m, defaultSchema)}, nil
	}
	if m := truncateRe.FindStringSubmatch(sql); m != nil {
		return []Touch{touchFrom(m, defaultSchema)}, nil
	}
	if m := dropTableRe.FindStringSubmatch(sql); m != nil {
		return parseDropList(sql, defaultSchema)
	}

	return nil, errors.Annotatef(ErrUnrecognized, "statement: %.80s", sql)
}

func touchFrom(m []string, defaultSchema string) Touch {
	schema, table := m[1], m[2]
	if schema == "" {
		schema = defaultSchema
	}
	return Touch{Schema: strings.ToLower(schema), Table: strings.ToLower(table)}
}

var dropClauseRe = regexp.MustCompile(`(?is)^\s*DROP\s+(?:TEMPORARY\s+)?TABLE\s+(?:IF\s+EXISTS\s+)?(.+)$`)
var identOnlyRe = regexp.MustCompile(`(?is)^` + identRe)

// parseDropList re-scans "DROP TABLE a, b.c, d" for every
// comma-separated identifier, since the regexp engine used here has
// no repeating-group capture.
func parseDropList(sql, defaultSchema string) ([]Touch, error) {
	cm := dropClauseRe.FindStringSubmatch(sql)
	if cm == nil {
		return nil, errors.Annotatef(ErrUnrecognized, "statement: %.80s", sql)
	}

	var out []Touch
	for _, part := range strings.Split(cm[1], ",") {
		part = strings.TrimSpace(part)
		m := identOnlyRe.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		out = append(out, touchFrom(m, defaultSchema))
	}
	if len(out) == 0 {
		return nil, errors.Annotatef(ErrUnrecognized, "statement: %.80s", sql)
	}
	return out, nil
}

// parseRename recovers every "old TO new" pair in a (possibly
// multi-pair) RENAME TABLE statement, touching both the old and new
// names since either side's cached metadata may be stale afterward.
func parseRename(clause, defaultSchema string) ([]Touch, error) {
	pairs := renamePairRe.FindAllStringSubmatch(clause, -1)
	if len(pairs) == 0 {
		return nil, errors.Annotatef(ErrUnrecognized, "rename clause: %.80s", clause)
	}
	var out []Touch
	for _, m := range pairs {
		out = append(out, touchFrom([]string{m[0], m[1], m[2]}, defaultSchema))
		out = append(out, touchFrom([]string{m[0], m[3], m[4]}, defaultSchema))
	}
	return out, nil
}

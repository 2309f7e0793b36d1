// Package filter implements the deterministic allow/deny and
// name-remapping rules of spec §4.3.
package filter

import (
	"regexp"
	"strings"
	"sync"

	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/pkg/errors"
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_?*]{1,64}$`)

// Filter holds the five pattern lists from spec §4.3 and memoises
// filter decisions per (schema, table).
type Filter struct {
	doDBs     []string
	ignoreDBs []string
	doTbs     []string
	ignoreTbs []string
	doEvents  map[string]bool

	mu    sync.RWMutex
	cache map[string]bool
}

// Config mirrors the [filter] INI section (spec §6).
type Config struct {
	DoDBs     string
	IgnoreDBs string
	DoTbs     string
	IgnoreTbs string
	DoEvents  string
}

// New builds a Filter from comma-separated pattern lists, validating
// every identifier token against spec §4.3's `[A-Za-z0-9_?*]{1,64}`
// rule.
func New(cfg Config) (*Filter, error) {
	doDBs, err := parseDBList(cfg.DoDBs)
	if err != nil {
		return nil, err
	}
	ignoreDBs, err := parseDBList(cfg.IgnoreDBs)
	if err != nil {
		return nil, err
	}
	doTbs, err := parseTbList(cfg.DoTbs)
	if err != nil {
		return nil, err
	}
	ignoreTbs, err := parseTbList(cfg.IgnoreTbs)
	if err != nil {
		return nil, err
	}

	doEvents := make(map[string]bool)
	for _, e := range splitNonEmpty(cfg.DoEvents) {
		doEvents[strings.ToLower(e)] = true
	}

	return &Filter{
		doDBs:     doDBs,
		ignoreDBs: ignoreDBs,
		doTbs:     doTbs,
		ignoreTbs: ignoreTbs,
		doEvents:  doEvents,
		cache:     make(map[string]bool),
	}, nil
}

// Filter returns true if the event should be DROPPED. It follows spec
// §4.3's decision order exactly, including the documented likely-bug
// in step 1 (§9): when do_events is configured and does not name
// kind, the event is *kept*, not dropped.
func (f *Filter) Filter(db, tb string, kind model.EventKind) bool {
	if len(f.doEvents) > 0 && !f.doEvents[kind.String()] {
		return false
	}

	fullName := db + "." + tb
	f.mu.RLock()
	if cached, ok := f.cache[fullName]; ok {
		f.mu.RUnlock()
		return cached
	}
	f.mu.RUnlock()

	drop := contains(f.ignoreTbs, fullName) || contains(f.ignoreDBs, db)
	keep := contains(f.doTbs, fullName) || contains(f.doDBs, db)
	result := drop || !keep

	f.mu.Lock()
	f.cache[fullName] = result
	f.mu.Unlock()
	return result
}

// FilterDB returns true if every table in db should be dropped: used
// to short-circuit a whole-schema DDL or a snapshot's table
// enumeration before per-table filtering runs.
func (f *Filter) FilterDB(db string) bool {
	fullName := db + ".*"
	drop := contains(f.ignoreTbs, fullName) || contains(f.ignoreDBs, db)
	keep := contains(f.doDBs, db)
	if !drop && !keep {
		for _, pattern := range f.doTbs {
			dbPattern := pattern
			if idx := strings.IndexByte(pattern, '.'); idx >= 0 {
				dbPattern = pattern[:idx]
			}
			if matchName(dbPattern, db) {
				keep = true
				break
			}
		}
	}
	return drop || !keep
}

// Invalidate clears the memoised decision for one (schema, table),
// called after DDL that might change filtering-relevant metadata.
func (f *Filter) Invalidate(db, tb string) {
	f.mu.Lock()
	delete(f.cache, db+"."+tb)
	f.mu.Unlock()
}

// InvalidateAll clears every memoised decision. The MySQL CDC
// extractor's DDL-parse-failure path (spec §4.4.2) calls this, not
// just Invalidate, mirroring the "clear the entire meta cache"
// recovery policy.
func (f *Filter) InvalidateAll() {
	f.mu.Lock()
	f.cache = make(map[string]bool)
	f.mu.Unlock()
}

func contains(patterns []string, item string) bool {
	for _, p := range patterns {
		if matchName(p, item) {
			return true
		}
	}
	return false
}

// matchName implements the `*`-as-any-run, `?`-as-one-char glob, with
// `.` always literal (patterns are either a bare db name or a
// "db.tb" pair, never containing a `.` as a wildcard boundary).
func matchName(pattern, item string) bool {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(item)
}

func parseDBList(s string) ([]string, error) {
	tokens := splitNonEmpty(s)
	for _, t := range tokens {
		if !identPattern.MatchString(t) {
			return nil, errors.Errorf("invalid filter config, check error near: %s", t)
		}
	}
	return tokens, nil
}

func parseTbList(s string) ([]string, error) {
	tokens := splitNonEmpty(s)
	for _, t := range tokens {
		parts := strings.Split(t, ".")
		if len(parts) != 2 || !identPattern.MatchString(parts[0]) || !identPattern.MatchString(parts[1]) {
			return nil, errors.Errorf("invalid filter config, check error near: %s", t)
		}
	}
	return tokens, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package filter

import "strings"

// Router maps source (schema, table) pairs to destination
// (schema, table) pairs, optionally remapping column names and
// message-sink topics (spec §4.3).
type Router struct {
	dbMap    map[string]string
	tbMap    map[string]string // "srcdb.srctb" -> "dstdb.dsttb"
	colMap   map[string]map[string]string // "srcdb.srctb" -> srcCol -> dstCol
	topicMap map[string]string            // "srcdb.srctb" | "srcdb.*" | "*.*" -> topic
}

// NewRouter builds a Router from the [router] INI section's
// comma-separated "src:dst" pair lists (spec §6).
func NewRouter(dbMapCfg, tbMapCfg, colMapCfg, topicMapCfg string) *Router {
	r := &Router{
		dbMap:    parsePairs(dbMapCfg),
		tbMap:    parsePairs(tbMapCfg),
		colMap:   make(map[string]map[string]string),
		topicMap: parsePairs(topicMapCfg),
	}
	for srcTbl, rest := range parseColPairs(colMapCfg) {
		r.colMap[srcTbl] = rest
	}
	return r
}

// Route returns the destination (schema, table) for a source pair,
// falling back to the schema-level map, then the identity mapping,
// when no table-level mapping is configured.
func (r *Router) Route(srcDB, srcTb string) (dstDB, dstTb string) {
	key := srcDB + "." + srcTb
	if dst, ok := r.tbMap[key]; ok {
		parts := strings.SplitN(dst, ".", 2)
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
	}
	dstDB = srcDB
	if mapped, ok := r.dbMap[srcDB]; ok {
		dstDB = mapped
	}
	return dstDB, srcTb
}

// RouteCol returns the destination column name for a source column,
// defaulting to the identity mapping.
func (r *Router) RouteCol(srcDB, srcTb, srcCol string) string {
	if cols, ok := r.colMap[srcDB+"."+srcTb]; ok {
		if dst, ok := cols[srcCol]; ok {
			return dst
		}
	}
	return srcCol
}

// Topic resolves a message-sink topic for (db, tb), falling back
// "db.tb -> db.* -> *.*" per spec §4.3.
func (r *Router) Topic(db, tb string) (string, bool) {
	if t, ok := r.topicMap[db+"."+tb]; ok {
		return t, true
	}
	if t, ok := r.topicMap[db+".*"]; ok {
		return t, true
	}
	if t, ok := r.topicMap["*.*"]; ok {
		return t, true
	}
	return "", false
}

func parsePairs(cfg string) map[string]string {
	out := make(map[string]string)
	for _, entry := range splitNonEmpty(cfg) {
		kv := strings.SplitN(entry, ":", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = kv[1]
	}
	return out
}

// parseColPairs parses entries shaped "db.tb.srcCol:dstCol" into a
// map keyed by "db.tb" whose values map srcCol -> dstCol.
func parseColPairs(cfg string) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, entry := range splitNonEmpty(cfg) {
		kv := strings.SplitN(entry, ":", 2)
		if len(kv) != 2 {
			continue
		}
		lhs := strings.Split(kv[0], ".")
		if len(lhs) != 3 {
			continue
		}
		tblKey := lhs[0] + "." + lhs[1]
		if out[tblKey] == nil {
			out[tblKey] = make(map[string]string)
		}
		out[tblKey][lhs[2]] = kv[1]
	}
	return out
}

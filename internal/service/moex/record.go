package moex

import (
	"strings"
	"time"

	"MoexPull/pkg/util"
)

// Record is one parsed row: column name to raw value. Markup rows carry
// strings; tabular rows carry json.Number, string, bool or nil.
type Record map[string]interface{}

// String returns the trimmed text of key, "" when absent or null.
func (r Record) String(key string) string {
	return strings.TrimSpace(util.ToString(r[key]))
}

// Float parses key as a number.
func (r Record) Float(key string) (float64, bool) {
	return util.ToFloat(r[key])
}

// FloatOr parses key as a number, returning def when absent or unparseable.
func (r Record) FloatOr(key string, def float64) float64 {
	if v, ok := r.Float(key); ok {
		return v
	}
	return def
}

// Date parses key as a calendar date.
func (r Record) Date(key string) (time.Time, bool) {
	return util.ParseDate(r.String(key))
}

// First returns the first record or nil.
func First(rs []Record) Record {
	if len(rs) == 0 {
		return nil
	}
	return rs[0]
}

// Last returns the last record or nil.
func Last(rs []Record) Record {
	if len(rs) == 0 {
		return nil
	}
	return rs[len(rs)-1]
}

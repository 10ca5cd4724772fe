// Package blocklist suppresses replication of tables whose database and
// table names match configured regular-expression pairs.
package blocklist

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRule is wrapped by every Parse failure.
var ErrInvalidRule = errors.New("invalid block-list rule")

type rule struct {
	db    *regexp.Regexp
	table *regexp.Regexp
}

// Filter is an ordered set of (database, table) pattern pairs. The zero
// value and nil both match nothing.
type Filter struct {
	rules []rule
}

// Parse compiles a "dbRegex:tableRegex[,dbRegex:tableRegex]*" string.
// Patterns must match a name in full, not a substring of it. Empty entries,
// such as the one after a trailing comma, are ignored.
func Parse(cfg string) (*Filter, error) {
	f := &Filter{}
	if strings.TrimSpace(cfg) == "" {
		return f, nil
	}
	for i, entry := range strings.Split(cfg, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		dbPat, tblPat, ok := strings.Cut(entry, ":")
		if !ok || dbPat == "" || tblPat == "" {
			return nil, fmt.Errorf("%w: entry %d %q: want db-regex:table-regex", ErrInvalidRule, i, entry)
		}
		db, err := compileFull(dbPat)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d database pattern: %v", ErrInvalidRule, i, err)
		}
		tbl, err := compileFull(tblPat)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d table pattern: %v", ErrInvalidRule, i, err)
		}
		f.rules = append(f.rules, rule{db: db, table: tbl})
	}
	return f, nil
}

// MustParse is like Parse but panics on error.
func MustParse(cfg string) *Filter {
	f, err := Parse(cfg)
	if err != nil {
		panic(err)
	}
	return f
}

func compileFull(p string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + p + `)$`)
}

// Matches reports whether any rule matches both db and table.
func (f *Filter) Matches(db, table string) bool {
	if f == nil {
		return false
	}
	for _, r := range f.rules {
		if r.db.MatchString(db) && r.table.MatchString(table) {
			return true
		}
	}
	return false
}

// Len returns the number of rules.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rules)
}

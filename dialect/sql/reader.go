package sql

import (
	"strings"
	"sync"

	"github.com/syssam/sqlrepo"
)

// Unqualified strips any table qualifier from a result column name.
func Unqualified(column string) string {
	if i := strings.LastIndexByte(column, '.'); i >= 0 {
		return column[i+1:]
	}
	return column
}

// GetIndexForColumn returns the position of name in columns. Names are
// compared case-insensitively and without table qualifiers.
func GetIndexForColumn(columns []string, name, query string) (int, error) {
	for i, c := range columns {
		if strings.EqualFold(Unqualified(c), name) {
			return i, nil
		}
	}
	return -1, &sqlrepo.ColumnError{Column: name, Query: query, Err: sqlrepo.ErrColumnNotFound}
}

// VerifyFieldsAreUnique fails if two result columns share an unqualified name.
func VerifyFieldsAreUnique(columns []string, query string) error {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		k := strings.ToLower(Unqualified(c))
		if _, ok := seen[k]; ok {
			return &sqlrepo.ColumnError{Column: Unqualified(c), Query: query, Err: sqlrepo.ErrDuplicateColumn}
		}
		seen[k] = struct{}{}
	}
	return nil
}

// ReaderHelper resolves entity columns to result positions by name and
// caches the resolution per query text and requested names. Methods
// sharing a query but reading different row types get separate entries.
type ReaderHelper struct {
	mu    sync.RWMutex
	cache map[string][]int
}

// NewReaderHelper returns an empty helper.
func NewReaderHelper() *ReaderHelper {
	return &ReaderHelper{cache: make(map[string][]int)}
}

// Indexes returns, for every name in names, its position in the result
// columns of query. The result set is checked for duplicate names before
// any position is resolved.
func (h *ReaderHelper) Indexes(query string, columns, names []string) ([]int, error) {
	key := cacheKey(query, names)
	h.mu.RLock()
	idx, ok := h.cache[key]
	h.mu.RUnlock()
	if ok {
		return idx, nil
	}
	if err := VerifyFieldsAreUnique(columns, query); err != nil {
		return nil, err
	}
	idx = make([]int, len(names))
	for i, n := range names {
		j, err := GetIndexForColumn(columns, n, query)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	h.mu.Lock()
	h.cache[key] = idx
	h.mu.Unlock()
	return idx, nil
}

// Cached reports if names of query have a cached resolution.
func (h *ReaderHelper) Cached(query string, names []string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.cache[cacheKey(query, names)]
	return ok
}

func cacheKey(query string, names []string) string {
	return query + "\x00" + strings.ToLower(strings.Join(names, "\x00"))
}

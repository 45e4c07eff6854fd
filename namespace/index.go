package namespace

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/radiantone/emerge/envelope"
)

// fieldIndex is the side-table behind SearchText: field name → canonical
// value string → object ids. It is fed from each record's root payload on
// Put and Remove, so text queries never decode candidate objects.
//
// Only top-level scalar fields are indexed; nested structures would need
// full decode, which is exactly what the index exists to avoid.
type fieldIndex struct {
	fields map[string]map[string]map[string]struct{}
	byID   map[string]map[string]string // id → field → canonical value
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{
		fields: make(map[string]map[string]map[string]struct{}),
		byID:   make(map[string]map[string]string),
	}
}

// add indexes a record's top-level scalar fields. Callers hold the store's
// write lock.
func (fi *fieldIndex) add(rec *Record) {
	_, payload, err := envelope.RootPayload(rec.Data)
	if err != nil {
		// A record with an unreadable envelope is still storable; it
		// just does not participate in text search.
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return
	}

	indexed := make(map[string]string)
	for name, value := range fields {
		canonical, ok := canonicalValue(value)
		if !ok {
			continue
		}
		indexed[name] = canonical

		values, exists := fi.fields[name]
		if !exists {
			values = make(map[string]map[string]struct{})
			fi.fields[name] = values
		}
		ids, exists := values[canonical]
		if !exists {
			ids = make(map[string]struct{})
			values[canonical] = ids
		}
		ids[rec.ID] = struct{}{}
	}

	fi.byID[rec.ID] = indexed
}

// remove drops every index entry for an id. Callers hold the store's
// write lock.
func (fi *fieldIndex) remove(id string) {
	indexed, ok := fi.byID[id]
	if !ok {
		return
	}

	for field, canonical := range indexed {
		values, ok := fi.fields[field]
		if !ok {
			continue
		}
		if ids, ok := values[canonical]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(values, canonical)
			}
		}
		if len(values) == 0 {
			delete(fi.fields, field)
		}
	}

	delete(fi.byID, id)
}

// lookup returns the ids whose indexed value for field exactly matches
// query, sorted ascending. Callers hold the store's read lock.
func (fi *fieldIndex) lookup(field, query string) []string {
	values, ok := fi.fields[field]
	if !ok {
		return []string{}
	}
	ids, ok := values[query]
	if !ok {
		return []string{}
	}

	result := make([]string, 0, len(ids))
	for id := range ids {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// canonicalValue renders an indexable scalar to its canonical string.
// Numbers use the shortest representation that round-trips, so a query for
// "3" matches a stored 3.0.
func canonicalValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

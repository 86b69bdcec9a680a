// File path: internal/store/adapter.go
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Generic collection accessor with equality-match criteria, mirroring the
// document-database access pattern the rest of the store builds on. Only
// simple field = value criteria are supported; callers in this system never
// need range or compound boolean queries.

var allowedCollections = map[string]struct{}{
	"users":         {},
	"conversations": {},
	"messages":      {},
}

// GetOne returns the first record matching the criteria, or nil when none
// matches. Absence is a valid result, not an error.
func (s *Store) GetOne(ctx context.Context, collection string, criteria map[string]interface{}) (map[string]interface{}, error) {
	query, args, err := buildSelect(collection, criteria)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryxContext(ctx, query+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("get one %s: %w", collection, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	record := map[string]interface{}{}
	if err := rows.MapScan(record); err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	return normalizeRecord(record), nil
}

// GetAll returns every record matching the criteria. A nil criteria map
// returns the whole collection.
func (s *Store) GetAll(ctx context.Context, collection string, criteria map[string]interface{}) ([]map[string]interface{}, error) {
	query, args, err := buildSelect(collection, criteria)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryxContext(ctx, query+" ORDER BY id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", collection, err)
	}
	defer rows.Close()
	var records []map[string]interface{}
	for rows.Next() {
		record := map[string]interface{}{}
		if err := rows.MapScan(record); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		records = append(records, normalizeRecord(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return records, nil
}

// Insert adds a record and returns its assigned id.
func (s *Store) Insert(ctx context.Context, collection string, record map[string]interface{}) (int64, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	if len(record) == 0 {
		return 0, fmt.Errorf("insert %s: empty record", collection)
	}
	fields := sortedKeys(record)
	placeholders := make([]string, len(fields))
	args := make([]interface{}, len(fields))
	for i, field := range fields {
		if err := checkField(field); err != nil {
			return 0, err
		}
		placeholders[i] = "?"
		args[i] = record[field]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		collection, strings.Join(fields, ", "), strings.Join(placeholders, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", collection, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", collection, err)
	}
	return id, nil
}

// Update patches every record matching the criteria and reports whether
// anything changed.
func (s *Store) Update(ctx context.Context, collection string, criteria, patch map[string]interface{}) (bool, error) {
	if err := checkCollection(collection); err != nil {
		return false, err
	}
	if len(patch) == 0 {
		return false, fmt.Errorf("update %s: empty patch", collection)
	}
	var sets []string
	var args []interface{}
	for _, field := range sortedKeys(patch) {
		if err := checkField(field); err != nil {
			return false, err
		}
		sets = append(sets, field+" = ?")
		args = append(args, patch[field])
	}
	where, whereArgs, err := buildWhere(criteria)
	if err != nil {
		return false, err
	}
	args = append(args, whereArgs...)
	query := fmt.Sprintf("UPDATE %s SET %s%s", collection, strings.Join(sets, ", "), where)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", collection, err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update %s: %w", collection, err)
	}
	return changed > 0, nil
}

// Delete removes every record matching the criteria and reports whether
// anything was removed.
func (s *Store) Delete(ctx context.Context, collection string, criteria map[string]interface{}) (bool, error) {
	if err := checkCollection(collection); err != nil {
		return false, err
	}
	where, args, err := buildWhere(criteria)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("DELETE FROM %s%s", collection, where)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", collection, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", collection, err)
	}
	return removed > 0, nil
}

func buildSelect(collection string, criteria map[string]interface{}) (string, []interface{}, error) {
	if err := checkCollection(collection); err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(criteria)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT * FROM %s%s", collection, where), args, nil
}

func buildWhere(criteria map[string]interface{}) (string, []interface{}, error) {
	if len(criteria) == 0 {
		return "", nil, nil
	}
	var clauses []string
	var args []interface{}
	for _, field := range sortedKeys(criteria) {
		if err := checkField(field); err != nil {
			return "", nil, err
		}
		clauses = append(clauses, field+" = ?")
		args = append(args, criteria[field])
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func checkCollection(collection string) error {
	if _, ok := allowedCollections[collection]; !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}
	return nil
}

func checkField(field string) error {
	if field == "" {
		return fmt.Errorf("empty field name")
	}
	for _, r := range field {
		if (r < 'a' || r > 'z') && r != '_' {
			return fmt.Errorf("invalid field name %q", field)
		}
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeRecord(record map[string]interface{}) map[string]interface{} {
	for k, v := range record {
		if raw, ok := v.([]byte); ok {
			record[k] = string(raw)
		}
	}
	return record
}

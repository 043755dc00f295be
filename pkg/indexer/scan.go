package indexer

// scan.go maps rows onto tagged structs. sqlite3 returns int64 for INTEGER
// columns while rqlite returns float64 (JSON numbers), so every numeric
// column goes through the same lenient conversion.

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// scanAll scans every row into a T, matching columns to `db` struct tags.
func scanAll[T any](rows *sql.Rows) ([]T, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var zero T
	index := buildFieldIndex(reflect.TypeOf(zero))

	var out []T
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		var item T
		dest := reflect.ValueOf(&item).Elem()
		for i, c := range cols {
			idx, ok := index[strings.ToLower(c)]
			if !ok {
				continue
			}
			if err := setField(dest.Field(idx), raw[i]); err != nil {
				return nil, fmt.Errorf("column %s: %w", c, err)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func buildFieldIndex(t reflect.Type) map[string]int {
	m := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		col := strings.Split(f.Tag.Get("db"), ",")[0]
		if col == "" {
			col = f.Name
		}
		m[strings.ToLower(col)] = i
	}
	return m
}

func setField(field reflect.Value, raw any) error {
	if raw == nil {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(asString(raw))
	case reflect.Bool:
		n, err := asInt64(raw)
		if err != nil {
			return err
		}
		field.SetBool(n != 0)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := asInt64(raw)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		n, err := asInt64(raw)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("negative value %d for unsigned field", n)
		}
		field.SetUint(uint64(n))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

func asInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", raw)
	}
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

package core

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is one mapped result row. Values are decoded per the projection's
// column modes; nested record keys hold a Record or nil.
type Record map[string]interface{}

// shapeCol is one output column of a compiled projection: its record key,
// the nested group it belongs to (empty for top level), and its value mode.
type shapeCol struct {
	key   string
	group string
	mode  Mode
}

// shapeGroup is one declared nested record key, in declaration order.
// Collapsible groups become nil when every member column is NULL in a row.
type shapeGroup struct {
	key         string
	collapsible bool
}

// projShape describes how the mapper reconstructs records from a result
// set. Columns are positional: cols[i] describes the i-th selected column.
// A dynamic shape carries no column metadata and takes keys from the driver.
type projShape struct {
	dynamic bool
	multi   bool
	cols    []shapeCol
	groups  []shapeGroup
}

// mapRows drains a result set into records per the shape. The rows are
// closed by the caller.
func mapRows(rows *sql.Rows, shape *projShape) ([]Record, error) {
	if shape == nil || shape.dynamic {
		return mapDynamicRows(rows)
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) != len(shape.cols) {
		return nil, fmt.Errorf("mapper: result has %d columns, projection has %d", len(cols), len(shape.cols))
	}

	var records []Record
	raw := make([]interface{}, len(shape.cols))
	dests := make([]interface{}, len(shape.cols))
	for i := range raw {
		dests[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		rec, err := buildRecord(raw, shape)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// buildRecord assembles one record from raw driver values.
func buildRecord(raw []interface{}, shape *projShape) (Record, error) {
	rec := make(Record)
	var groups map[string]Record
	var groupNull map[string]bool
	if shape.multi {
		groups = make(map[string]Record, len(shape.groups))
		groupNull = make(map[string]bool, len(shape.groups))
		for _, g := range shape.groups {
			groups[g.key] = make(Record)
			groupNull[g.key] = true
		}
	}

	for i, sc := range shape.cols {
		v, err := decodeValue(raw[i], sc.mode)
		if err != nil {
			return nil, fmt.Errorf("mapper: column %q: %w", sc.key, err)
		}
		if sc.group == "" {
			rec[sc.key] = v
			continue
		}
		groups[sc.group][sc.key] = v
		if raw[i] != nil {
			groupNull[sc.group] = false
		}
	}

	for _, g := range shape.groups {
		if g.collapsible && groupNull[g.key] {
			rec[g.key] = nil
			continue
		}
		rec[g.key] = groups[g.key]
	}
	return rec, nil
}

// mapDynamicRows maps a SELECT * over a schemaless source: keys come from
// the result set, values pass through plain decoding.
func mapDynamicRows(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []Record
	raw := make([]interface{}, len(cols))
	dests := make([]interface{}, len(cols))
	for i := range raw {
		dests[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, name := range cols {
			v, err := decodeValue(raw[i], ModePlain)
			if err != nil {
				return nil, fmt.Errorf("mapper: column %q: %w", name, err)
			}
			rec[name] = v
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// decodeValue applies a column mode to a raw driver value. NULL always
// decodes to nil regardless of mode.
func decodeValue(v interface{}, mode Mode) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch mode {
	case ModePlain:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	case ModeBool:
		return decodeBool(v)
	case ModeTime:
		return decodeTime(v)
	case ModeJSON:
		return decodeJSON(v)
	default:
		return nil, fmt.Errorf("unknown column mode %d", mode)
	}
}

// decodeBool treats any nonzero stored value as true.
func decodeBool(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case []byte:
		return parseBoolText(string(x))
	case string:
		return parseBoolText(x)
	default:
		return nil, fmt.Errorf("cannot decode %T as bool", v)
	}
}

func parseBoolText(s string) (interface{}, error) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as bool", s)
	}
	return n != 0, nil
}

// decodeTime converts stored epoch seconds to a UTC time.Time. Driver-native
// time values pass through normalized to UTC.
func decodeTime(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case float64:
		sec := int64(x)
		nsec := int64((x - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	case []byte:
		return parseTimeText(string(x))
	case string:
		return parseTimeText(x)
	default:
		return nil, fmt.Errorf("cannot decode %T as time", v)
	}
}

func parseTimeText(s string) (interface{}, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return nil, fmt.Errorf("cannot decode %q as epoch seconds or RFC3339 text", s)
}

// decodeJSON unmarshals stored JSON text. Empty text decodes to nil, same
// as NULL.
func decodeJSON(v interface{}) (interface{}, error) {
	var text []byte
	switch x := v.(type) {
	case []byte:
		text = x
	case string:
		text = []byte(x)
	default:
		return nil, fmt.Errorf("cannot decode %T as JSON", v)
	}
	if len(text) == 0 {
		return nil, nil
	}
	var out interface{}
	if err := json.Unmarshal(text, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeValue applies a column mode to a Go value on the write path.
func encodeValue(v interface{}, mode Mode) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch mode {
	case ModeBool:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return v, nil
	case ModeTime:
		if t, ok := v.(time.Time); ok {
			return t.Unix(), nil
		}
		return v, nil
	case ModeJSON:
		switch v.(type) {
		case string, []byte:
			return v, nil
		}
		text, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(text), nil
	default:
		return v, nil
	}
}

package encoder

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

// appendAvro validates v against t and appends its Avro binary encoding to
// buf. On error the returned slice must be discarded.
func appendAvro(buf []byte, t *avroType, v interface{}, path string) ([]byte, error) {
	switch t.kind {
	case "null":
		if v != nil {
			return nil, mismatch(path, "expected null, got %s", describe(v))
		}
		return buf, nil

	case "boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(path, "expected boolean, got %s", describe(v))
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil

	case "int":
		n, err := intValue(t, v, path)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, mismatch(path, "value %d out of int range", n)
		}
		return binary.AppendVarint(buf, n), nil

	case "long":
		n, err := intValue(t, v, path)
		if err != nil {
			return nil, err
		}
		return binary.AppendVarint(buf, n), nil

	case "float":
		f, ok := toFloat64(v)
		if !ok {
			return nil, mismatch(path, "expected float, got %s", describe(v))
		}
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(f))), nil

	case "double":
		f, ok := toFloat64(v)
		if !ok {
			return nil, mismatch(path, "expected double, got %s", describe(v))
		}
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f)), nil

	case "bytes":
		b, ok := toBytes(v)
		if !ok {
			return nil, mismatch(path, "expected bytes, got %s", describe(v))
		}
		buf = binary.AppendVarint(buf, int64(len(b)))
		return append(buf, b...), nil

	case "string":
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(path, "expected string, got %s", describe(v))
		}
		buf = binary.AppendVarint(buf, int64(len(s)))
		return append(buf, s...), nil

	case "fixed":
		b, ok := toBytes(v)
		if !ok || len(b) != t.size {
			return nil, mismatch(path, "expected %d fixed bytes, got %s", t.size, describe(v))
		}
		return append(buf, b...), nil

	case "enum":
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(path, "expected enum symbol, got %s", describe(v))
		}
		for i, sym := range t.symbols {
			if sym == s {
				return binary.AppendVarint(buf, int64(i)), nil
			}
		}
		return nil, mismatch(path, "%q is not a symbol of %s", s, t.name)

	case "array":
		items, ok := v.([]interface{})
		if !ok {
			return nil, mismatch(path, "expected array, got %s", describe(v))
		}
		if len(items) > 0 {
			buf = binary.AppendVarint(buf, int64(len(items)))
			for i, item := range items {
				var err error
				if buf, err = appendAvro(buf, t.items, item, path+"["+strconv.Itoa(i)+"]"); err != nil {
					return nil, err
				}
			}
		}
		return append(buf, 0), nil

	case "map":
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, mismatch(path, "expected map, got %s", describe(v))
		}
		if len(m) > 0 {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			buf = binary.AppendVarint(buf, int64(len(keys)))
			for _, k := range keys {
				buf = binary.AppendVarint(buf, int64(len(k)))
				buf = append(buf, k...)
				var err error
				if buf, err = appendAvro(buf, t.values, m[k], path+"["+k+"]"); err != nil {
					return nil, err
				}
			}
		}
		return append(buf, 0), nil

	case "record":
		return appendRecord(buf, t, v, path)

	case "union":
		return appendUnion(buf, t, v, path)
	}
	return nil, mismatch(path, "unsupported schema type %q", t.kind)
}

func appendRecord(buf []byte, t *avroType, v interface{}, path string) ([]byte, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, mismatch(path, "expected object for record %s, got %s", t.name, describe(v))
	}

	known := make(map[string]bool, len(t.fields))
	for _, f := range t.fields {
		known[f.name] = true
	}
	var unknown []string
	for k := range m {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, mismatch(join(path, unknown[0]), "field is not defined in record %s", t.name)
	}

	for _, f := range t.fields {
		fieldPath := join(path, f.name)
		fv, present := m[f.name]
		switch {
		case present:
		case f.hasDefault:
			fv = defaultValue(f.typ, f.def)
		case nullable(f.typ):
			fv = nil
		default:
			return nil, mismatch(fieldPath, "missing required field")
		}

		var err error
		if buf, err = appendAvro(buf, f.typ, fv, fieldPath); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendUnion(buf []byte, t *avroType, v interface{}, path string) ([]byte, error) {
	// {"branch": value} selects a branch explicitly.
	if m, ok := v.(map[string]interface{}); ok && len(m) == 1 {
		for name, inner := range m {
			for i, b := range t.branches {
				if b.branchName() == name && b.kind != "map" {
					out, err := appendAvro(binary.AppendVarint(buf, int64(i)), b, inner, path)
					if err == nil {
						return out, nil
					}
				}
			}
		}
	}

	var candidates []int
	for i, b := range t.branches {
		if (v == nil) == (b.kind == "null") {
			candidates = append(candidates, i)
		}
	}

	var lastErr error
	for _, i := range candidates {
		// A failed attempt must not leave bytes behind, so each branch
		// gets its own scratch buffer.
		scratch, err := appendAvro(nil, t.branches[i], v, path)
		if err == nil {
			buf = binary.AppendVarint(buf, int64(i))
			return append(buf, scratch...), nil
		}
		lastErr = err
	}
	if len(candidates) == 1 && lastErr != nil {
		return nil, lastErr
	}
	if v == nil {
		return nil, mismatch(path, "null not allowed")
	}
	return nil, mismatch(path, "%s matches no union branch", describe(v))
}

func nullable(t *avroType) bool {
	if t.kind == "null" {
		return true
	}
	if t.kind != "union" {
		return false
	}
	for _, b := range t.branches {
		if b.kind == "null" {
			return true
		}
	}
	return false
}

// defaultValue adapts a schema default to the writer's input shape. Union
// defaults always refer to the first branch.
func defaultValue(t *avroType, def interface{}) interface{} {
	if t.kind == "union" && len(t.branches) > 0 {
		first := t.branches[0]
		if first.kind == "null" {
			return nil
		}
		return map[string]interface{}{first.branchName(): defaultValue(first, def)}
	}
	return def
}

func intValue(t *avroType, v interface{}, path string) (int64, error) {
	switch t.logical {
	case "timestamp-millis", "timestamp-micros", "local-timestamp-millis", "local-timestamp-micros":
		if ts, ok := toTime(v); ok {
			if t.logical == "timestamp-millis" || t.logical == "local-timestamp-millis" {
				return ts.UnixMilli(), nil
			}
			return ts.UnixMicro(), nil
		}
	case "date":
		if s, ok := v.(string); ok {
			d, err := time.Parse(time.DateOnly, s)
			if err != nil {
				return 0, mismatch(path, "invalid date %q", s)
			}
			return d.Unix() / 86400, nil
		}
		if ts, ok := v.(time.Time); ok {
			return ts.Unix() / 86400, nil
		}
	}

	n, ok := toInt64(v)
	if !ok {
		return 0, mismatch(path, "expected %s, got %s", t.kind, describe(v))
	}
	return n, nil
}

func toTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		ts, err := time.Parse(time.RFC3339Nano, x)
		return ts, err == nil
	}
	return time.Time{}, false
}

func toInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, false
		}
		return int64(f), true
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return 0, false
		}
		return int64(x), true
	case float32:
		return toInt64(float64(x))
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func toBytes(v interface{}) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	}
	return nil, false
}

func describe(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	case []byte:
		return "bytes"
	}
	return "unsupported type"
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

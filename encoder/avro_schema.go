package encoder

import (
	"encoding/json"
	"fmt"
	"strings"
)

// avroType is a parsed Avro schema node.
type avroType struct {
	kind    string
	name    string // full name for record, enum and fixed
	logical string

	fields   []avroField
	symbols  []string
	items    *avroType
	values   *avroType
	size     int
	branches []*avroType
}

type avroField struct {
	name       string
	typ        *avroType
	def        interface{}
	hasDefault bool
}

var avroPrimitives = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true,
	"float": true, "double": true, "bytes": true, "string": true,
}

// branchName is the name a union branch is selected by in the
// {"type": value} wrapper form.
func (t *avroType) branchName() string {
	if t.name != "" {
		return t.name
	}
	return t.kind
}

type schemaParser struct {
	named map[string]*avroType
}

func parseAvroSchema(body string) (*avroType, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	p := &schemaParser{named: make(map[string]*avroType)}
	t, err := p.parse(raw, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return t, nil
}

func fullName(name, namespace string) string {
	if strings.Contains(name, ".") || namespace == "" {
		return name
	}
	return namespace + "." + name
}

func (p *schemaParser) lookup(name, namespace string) (*avroType, bool) {
	if t, ok := p.named[fullName(name, namespace)]; ok {
		return t, true
	}
	t, ok := p.named[name]
	return t, ok
}

func (p *schemaParser) define(t *avroType, short string) error {
	if _, exists := p.named[t.name]; exists {
		return fmt.Errorf("type %q defined twice", t.name)
	}
	p.named[t.name] = t
	if _, exists := p.named[short]; !exists {
		p.named[short] = t
	}
	return nil
}

func (p *schemaParser) parse(raw interface{}, namespace string) (*avroType, error) {
	switch r := raw.(type) {
	case string:
		if avroPrimitives[r] {
			return &avroType{kind: r}, nil
		}
		if t, ok := p.lookup(r, namespace); ok {
			return t, nil
		}
		return nil, fmt.Errorf("unknown type %q", r)

	case []interface{}:
		if len(r) == 0 {
			return nil, fmt.Errorf("empty union")
		}
		u := &avroType{kind: "union"}
		for _, b := range r {
			bt, err := p.parse(b, namespace)
			if err != nil {
				return nil, err
			}
			if bt.kind == "union" {
				return nil, fmt.Errorf("union may not directly contain a union")
			}
			u.branches = append(u.branches, bt)
		}
		return u, nil

	case map[string]interface{}:
		return p.parseComplex(r, namespace)
	}
	return nil, fmt.Errorf("unexpected schema node %T", raw)
}

func (p *schemaParser) parseComplex(r map[string]interface{}, namespace string) (*avroType, error) {
	typ, ok := r["type"].(string)
	if !ok {
		// {"type": {...}} or {"type": [...]}: the wrapper adds nothing.
		inner, present := r["type"]
		if !present {
			return nil, fmt.Errorf("schema object without type")
		}
		return p.parse(inner, namespace)
	}

	if ns, ok := r["namespace"].(string); ok {
		namespace = ns
	}

	switch typ {
	case "record", "error":
		name, _ := r["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("record without name")
		}
		t := &avroType{kind: "record", name: fullName(name, namespace)}
		if err := p.define(t, name); err != nil {
			return nil, err
		}
		if i := strings.LastIndex(t.name, "."); i >= 0 {
			namespace = t.name[:i]
		}
		rawFields, ok := r["fields"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("record %q without fields", t.name)
		}
		for _, rf := range rawFields {
			fm, ok := rf.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("record %q: malformed field", t.name)
			}
			fname, _ := fm["name"].(string)
			if fname == "" {
				return nil, fmt.Errorf("record %q: field without name", t.name)
			}
			ft, err := p.parse(fm["type"], namespace)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", fname, err)
			}
			def, hasDefault := fm["default"]
			t.fields = append(t.fields, avroField{name: fname, typ: ft, def: def, hasDefault: hasDefault})
		}
		return t, nil

	case "enum":
		name, _ := r["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("enum without name")
		}
		t := &avroType{kind: "enum", name: fullName(name, namespace)}
		syms, _ := r["symbols"].([]interface{})
		for _, s := range syms {
			sym, ok := s.(string)
			if !ok {
				return nil, fmt.Errorf("enum %q: non-string symbol", t.name)
			}
			t.symbols = append(t.symbols, sym)
		}
		if len(t.symbols) == 0 {
			return nil, fmt.Errorf("enum %q without symbols", t.name)
		}
		return t, p.define(t, name)

	case "fixed":
		name, _ := r["name"].(string)
		size, _ := r["size"].(float64)
		if name == "" || size <= 0 {
			return nil, fmt.Errorf("fixed needs a name and a positive size")
		}
		t := &avroType{kind: "fixed", name: fullName(name, namespace), size: int(size)}
		return t, p.define(t, name)

	case "array":
		items, err := p.parse(r["items"], namespace)
		if err != nil {
			return nil, fmt.Errorf("array items: %w", err)
		}
		return &avroType{kind: "array", items: items}, nil

	case "map":
		values, err := p.parse(r["values"], namespace)
		if err != nil {
			return nil, fmt.Errorf("map values: %w", err)
		}
		return &avroType{kind: "map", values: values}, nil
	}

	if avroPrimitives[typ] {
		logical, _ := r["logicalType"].(string)
		return &avroType{kind: typ, logical: logical}, nil
	}
	if t, ok := p.lookup(typ, namespace); ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown type %q", typ)
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProductRecord is one product page turned into fields. Nil pointers mean the
// field was not found on the page.
type ProductRecord struct {
	URL             string          `json:"url"`
	Title           *string         `json:"title"`
	Price           *int64          `json:"price"`
	Description     *string         `json:"description"`
	Characteristics Characteristics `json:"characteristics"`
	ImageURL        *string         `json:"image_url"`
}

// ValidationResult is produced once per record by the validator.
type ValidationResult struct {
	Accepted bool     `json:"accepted"`
	Reasons  []string `json:"reasons"`
}

// Attribute is a single characteristics row.
type Attribute struct {
	Name  string
	Value string
}

// Characteristics is a string mapping that remembers insertion order.
// Setting an existing key replaces its value in place.
type Characteristics struct {
	items []Attribute
	index map[string]int
}

func NewCharacteristics() Characteristics {
	return Characteristics{index: make(map[string]int)}
}

// CharacteristicsFrom builds a mapping from ordered pairs, later pairs
// overwriting earlier ones with the same name.
func CharacteristicsFrom(pairs ...Attribute) Characteristics {
	c := NewCharacteristics()
	for _, p := range pairs {
		c.Set(p.Name, p.Value)
	}
	return c
}

func (c *Characteristics) Set(name, value string) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[name]; ok {
		c.items[i].Value = value
		return
	}
	c.index[name] = len(c.items)
	c.items = append(c.items, Attribute{Name: name, Value: value})
}

func (c Characteristics) Get(name string) (string, bool) {
	i, ok := c.index[name]
	if !ok {
		return "", false
	}
	return c.items[i].Value, true
}

func (c Characteristics) Len() int {
	return len(c.items)
}

func (c Characteristics) Keys() []string {
	keys := make([]string, len(c.items))
	for i, it := range c.items {
		keys[i] = it.Name
	}
	return keys
}

// Attributes returns a copy of the rows in insertion order.
func (c Characteristics) Attributes() []Attribute {
	out := make([]Attribute, len(c.items))
	copy(out, c.items)
	return out
}

// Map returns the rows as a plain map.
func (c Characteristics) Map() map[string]string {
	m := make(map[string]string, len(c.items))
	for _, it := range c.items {
		m[it.Name] = it.Value
	}
	return m
}

func (c Characteristics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, it := range c.items {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(it.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(it.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Characteristics) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = NewCharacteristics()
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("characteristics must be a JSON object")
	}

	out := NewCharacteristics()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected characteristics key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("characteristic %q: %w", key, err)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Int64Ptr(v int64) *int64 {
	return &v
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SPDX-License-Identifier: MPL-2.0

package moduleconfig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Decode reads a module configuration from a YAML (or JSON) document node.
//
// The node must be a mapping with optional "types" and "collections" keys.
// "collections" may be a mapping keyed by collection name, in which case the
// key order of the document is kept as declaration order, or a sequence of
// rules that each carry a "name" field.
func Decode(node *yaml.Node) (Configuration, error) {
	if node == nil {
		return Configuration{}, fmt.Errorf("module configuration: empty document")
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return Configuration{}, fmt.Errorf("module configuration: empty document")
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return Configuration{}, fmt.Errorf("module configuration (line %d): expected a mapping", node.Line)
	}

	cfg := Configuration{Types: map[string]TypeRule{}}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "types":
			if err := value.Decode(&cfg.Types); err != nil {
				return Configuration{}, fmt.Errorf("module configuration types: %w", err)
			}
		case "collections":
			collections, err := decodeCollections(value)
			if err != nil {
				return Configuration{}, err
			}
			cfg.Collections = collections
		default:
			return Configuration{}, fmt.Errorf("module configuration (line %d): unknown key %q", key.Line, key.Value)
		}
	}
	return cfg, nil
}

func decodeCollections(node *yaml.Node) ([]Collection, error) {
	switch node.Kind {
	case yaml.MappingNode:
		out := make([]Collection, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var c Collection
			if err := node.Content[i+1].Decode(&c); err != nil {
				return nil, fmt.Errorf("module configuration collections.%s: %w", node.Content[i].Value, err)
			}
			c.Name = node.Content[i].Value
			out = append(out, c)
		}
		return out, nil
	case yaml.SequenceNode:
		var out []Collection
		if err := node.Decode(&out); err != nil {
			return nil, fmt.Errorf("module configuration collections: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("module configuration collections (line %d): expected a mapping or a list", node.Line)
	}
}

// MarshalJSON encodes the configuration in the shape the runtime resolver
// expects. Type keys are sorted; collection keys keep declaration order.
func (r *Resolved) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`{"types":{`)
	for i, name := range sortedTypeNames(r.Types) {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONEntry(&buf, name, r.Types[name]); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`},"collections":{`)
	for i, c := range r.Collections {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONEntry(&buf, c.Name, c); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

func writeJSONEntry(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// writeJSON encodes a YAML node as JSON without going through a Go map, so
// mapping keys keep their document order.
func writeJSON(sb *strings.Builder, node *yaml.Node) error {
	node = resolveAlias(node)
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			sb.WriteString("null")
			return nil
		}
		return writeJSON(sb, node.Content[0])
	case yaml.MappingNode:
		sb.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				sb.WriteByte(',')
			}
			key, err := json.Marshal(node.Content[i].Value)
			if err != nil {
				return err
			}
			sb.Write(key)
			sb.WriteByte(':')
			if err := writeJSON(sb, node.Content[i+1]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	case yaml.SequenceNode:
		sb.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeJSON(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case yaml.ScalarNode:
		var value any
		if err := node.Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		sb.Write(encoded)
	default:
		return fmt.Errorf("line %d: unsupported value", node.Line)
	}
	return nil
}

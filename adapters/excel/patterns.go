package excel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"goodsam/domain/core"
	"goodsam/domain/pattern"
)

// DescriptionColumn is the catalogue column holding pattern descriptions
const DescriptionColumn = "description"

// PatternsFromTable parses the description column of a catalogue table. A
// pattern takes the ID written in its description, or its row index when
// there is none. Rows that fail to parse are reported by row index.
func PatternsFromTable(t *Table) ([]pattern.Pattern, map[int]error, error) {
	cells, ok := t.Column(DescriptionColumn)
	if !ok {
		return nil, nil, fmt.Errorf("pattern catalogue has no %q column", DescriptionColumn)
	}
	var patterns []pattern.Pattern
	failures := make(map[int]error)
	for i, raw := range cells {
		d, err := pattern.ParseDescription(raw)
		if err != nil {
			failures[i] = withIndex(err, i)
			continue
		}
		id := d.ID
		if id < 0 {
			id = i
		}
		patterns = append(patterns, pattern.Pattern{ID: id, Description: raw, Constraints: d.Constraints})
	}
	return patterns, failures, nil
}

// yamlCatalogue is the YAML catalogue layout:
//
//	patterns:
//	  - id: 0
//	    constraints:
//	      Population: {lb: 1000, ub: .inf}
//	      state: {in: [OH, KY]}
type yamlCatalogue struct {
	Patterns []struct {
		ID          *int      `yaml:"id"`
		Description string    `yaml:"description"`
		Constraints yaml.Node `yaml:"constraints"`
	} `yaml:"patterns"`
}

// ReadYAMLPatterns reads a YAML catalogue. Constraint order follows the file.
func ReadYAMLPatterns(path string) ([]pattern.Pattern, map[int]error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var cat yamlCatalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var patterns []pattern.Pattern
	failures := make(map[int]error)
	for i, entry := range cat.Patterns {
		id := i
		if entry.ID != nil {
			id = *entry.ID
		}
		doc, err := nodeJSON(&entry.Constraints)
		if err != nil {
			failures[i] = core.NewMalformedPatternError(i, "", err.Error())
			continue
		}
		set, err := pattern.ParseConstraints(doc)
		if err != nil {
			failures[i] = withIndex(err, i)
			continue
		}
		patterns = append(patterns, pattern.Pattern{ID: id, Description: entry.Description, Constraints: set})
	}
	return patterns, failures, nil
}

// nodeJSON renders a YAML node as JSON, keeping mapping key order.
// Infinities become the strings "inf" and "-inf".
func nodeJSON(n *yaml.Node) (string, error) {
	var b strings.Builder
	if err := writeNode(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeNode(b *strings.Builder, n *yaml.Node) error {
	switch n.Kind {
	case 0:
		b.WriteString("null")
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			b.WriteString("null")
			return nil
		}
		return writeNode(b, n.Content[0])
	case yaml.AliasNode:
		return writeNode(b, n.Alias)
	case yaml.MappingNode:
		b.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				b.WriteByte(',')
			}
			key, _ := json.Marshal(n.Content[i].Value)
			b.Write(key)
			b.WriteByte(':')
			if err := writeNode(b, n.Content[i+1]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case yaml.SequenceNode:
		b.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeNode(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case yaml.ScalarNode:
		return writeScalar(b, n)
	default:
		return fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
	return nil
}

func writeScalar(b *strings.Builder, n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		b.WriteString("null")
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return err
		}
		b.WriteString(strconv.FormatBool(v))
	case "!!int", "!!float":
		var v float64
		if err := n.Decode(&v); err != nil {
			return err
		}
		switch {
		case math.IsInf(v, 1):
			b.WriteString(`"inf"`)
		case math.IsInf(v, -1):
			b.WriteString(`"-inf"`)
		case math.IsNaN(v):
			return fmt.Errorf("line %d: NaN bound", n.Line)
		default:
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	default:
		s, _ := json.Marshal(n.Value)
		b.Write(s)
	}
	return nil
}

// withIndex stamps a catalogue position onto a pattern error
func withIndex(err error, index int) error {
	var pe *core.PatternError
	if errors.As(err, &pe) {
		return &core.PatternError{Index: index, Column: pe.Column, Err: pe.Err}
	}
	return &core.PatternError{Index: index, Err: err}
}

package pattern

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"goodsam/domain/core"
)

// Description is a catalogued pattern description as stored on disk
type Description struct {
	ID          int
	Constraints ConstraintSet
}

// ParseDescription parses `{'ID': n, 'constraints': {...}}`. Both JSON and
// single-quoted dict literal syntax are accepted.
func ParseDescription(raw string) (Description, error) {
	doc, err := normalize(raw)
	if err != nil {
		return Description{}, malformed(err.Error())
	}
	root := gjson.Parse(doc)
	if !root.IsObject() {
		return Description{}, malformed("description is not an object")
	}

	var d Description
	id := root.Get("ID")
	switch id.Type {
	case gjson.Number:
		d.ID = int(id.Int())
	case gjson.Null:
		d.ID = -1
	default:
		return Description{}, malformed(fmt.Sprintf("ID %q is not a number", id.Raw))
	}

	cons := root.Get("constraints")
	if !cons.Exists() {
		return d, nil
	}
	d.Constraints, err = parseConstraintObject(cons)
	if err != nil {
		return Description{}, err
	}
	return d, nil
}

// ParseConstraints parses a bare constraint mapping, keeping key order
func ParseConstraints(raw string) (ConstraintSet, error) {
	doc, err := normalize(raw)
	if err != nil {
		return nil, malformed(err.Error())
	}
	return parseConstraintObject(gjson.Parse(doc))
}

func parseConstraintObject(obj gjson.Result) (ConstraintSet, error) {
	if obj.Type == gjson.Null {
		return ConstraintSet{}, nil
	}
	if !obj.IsObject() {
		return nil, malformed("constraints is not an object")
	}

	set := ConstraintSet{}
	var failure error
	obj.ForEach(func(key, value gjson.Result) bool {
		b, err := parseBound(value)
		if err != nil {
			failure = core.NewMalformedPatternError(-1, key.String(), err.Error())
			return false
		}
		set = append(set, Constraint{Column: key.String(), Bound: b})
		return true
	})
	if failure != nil {
		return nil, failure
	}
	return set, nil
}

func parseBound(v gjson.Result) (Bound, error) {
	if !v.IsObject() {
		return Bound{}, fmt.Errorf("bound %s is not an object", v.Raw)
	}
	in := v.Get("in")
	lb := v.Get("lb")
	ub := v.Get("ub")

	var b Bound
	if in.Exists() {
		if !in.IsArray() {
			return Bound{}, fmt.Errorf("in is not a list")
		}
		b.HasIn = true
		b.In = []Value{}
		for _, item := range in.Array() {
			val, err := parseValue(item)
			if err != nil {
				return Bound{}, err
			}
			b.In = append(b.In, val)
		}
	}
	if lb.Exists() || ub.Exists() {
		b.HasRange = true
		b.Lower, b.Upper = math.Inf(-1), math.Inf(1)
		var err error
		if lb.Exists() && lb.Type != gjson.Null {
			if b.Lower, err = parseNumber(lb); err != nil {
				return Bound{}, fmt.Errorf("lb: %w", err)
			}
		}
		if ub.Exists() && ub.Type != gjson.Null {
			if b.Upper, err = parseNumber(ub); err != nil {
				return Bound{}, fmt.Errorf("ub: %w", err)
			}
		}
	}
	return b, b.Validate()
}

func parseNumber(v gjson.Result) (float64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.String:
		switch strings.ToLower(v.Str) {
		case "inf", "+inf", "infinity":
			return math.Inf(1), nil
		case "-inf", "-infinity":
			return math.Inf(-1), nil
		}
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v.Str)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%s is not a number", v.Raw)
}

func parseValue(v gjson.Result) (Value, error) {
	switch v.Type {
	case gjson.Number:
		return Num(v.Float()), nil
	case gjson.String:
		return Str(v.Str), nil
	case gjson.True:
		return Num(1), nil
	case gjson.False:
		return Num(0), nil
	}
	return Value{}, fmt.Errorf("unsupported in value %s", v.Raw)
}

func malformed(reason string) error {
	return core.NewMalformedPatternError(-1, "", reason)
}

// normalize rewrites a dict literal into JSON: single-quoted strings become
// double-quoted, True/False/None become JSON literals, bare inf/-inf become
// the strings "inf"/"-inf" and trailing commas are dropped. JSON input passes
// through unchanged.
func normalize(raw string) (string, error) {
	var out strings.Builder
	out.Grow(len(raw) + 16)

	src := []rune(raw)
	for i := 0; i < len(src); i++ {
		r := src[i]
		switch {
		case r == '\'' || r == '"':
			end, err := writeString(&out, src, i)
			if err != nil {
				return "", err
			}
			i = end
		case r == ',':
			j := skipSpace(src, i+1)
			if j < len(src) && (src[j] == '}' || src[j] == ']') {
				continue
			}
			out.WriteRune(r)
		case r == '-' && isIdentStart(src, skipSpace(src, i+1)):
			j := skipSpace(src, i+1)
			word, end := readIdent(src, j)
			if !isInfWord(word) {
				return "", fmt.Errorf("unexpected -%s", word)
			}
			out.WriteString(`"-inf"`)
			i = end - 1
		case isIdentStart(src, i):
			word, end := readIdent(src, i)
			switch {
			case isInfWord(word):
				out.WriteString(`"inf"`)
			case word == "True" || word == "true":
				out.WriteString("true")
			case word == "False" || word == "false":
				out.WriteString("false")
			case word == "None" || word == "null":
				out.WriteString("null")
			default:
				return "", fmt.Errorf("unexpected identifier %q", word)
			}
			i = end - 1
		case isNumberStart(src, i):
			end, err := writeNumber(&out, src, i)
			if err != nil {
				return "", err
			}
			i = end - 1
		case r == '(':
			out.WriteRune('[')
		case r == ')':
			out.WriteRune(']')
		default:
			out.WriteRune(r)
		}
	}

	doc := out.String()
	if !gjson.Valid(doc) {
		return "", fmt.Errorf("not a valid constraint literal")
	}
	return doc, nil
}

// writeString copies the quoted string starting at src[start] as a JSON
// string and returns the index of its closing quote.
func writeString(out *strings.Builder, src []rune, start int) (int, error) {
	quote := src[start]
	var text strings.Builder
	for i := start + 1; i < len(src); i++ {
		r := src[i]
		if r == '\\' && i+1 < len(src) {
			next := src[i+1]
			switch next {
			case 'n':
				text.WriteRune('\n')
			case 't':
				text.WriteRune('\t')
			default:
				text.WriteRune(next)
			}
			i++
			continue
		}
		if r == quote {
			out.WriteString(strconv.Quote(text.String()))
			return i, nil
		}
		text.WriteRune(r)
	}
	return 0, fmt.Errorf("unterminated string")
}

func skipSpace(src []rune, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\n' || src[i] == '\r') {
		i++
	}
	return i
}

func isIdentStart(src []rune, i int) bool {
	if i >= len(src) {
		return false
	}
	r := src[i]
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func readIdent(src []rune, i int) (string, int) {
	start := i
	for i < len(src) {
		r := src[i]
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			break
		}
		i++
	}
	return string(src[start:i]), i
}

func isInfWord(w string) bool {
	return w == "inf" || w == "Infinity"
}

func isNumberStart(src []rune, i int) bool {
	r := src[i]
	if r >= '0' && r <= '9' {
		return true
	}
	return r == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9'
}

// writeNumber re-emits a loose numeric literal (1., .5, 1e100) in JSON form
// and returns the index just past it.
func writeNumber(out *strings.Builder, src []rune, start int) (int, error) {
	i := start
	for i < len(src) {
		r := src[i]
		isExpSign := (r == '+' || r == '-') && i > start && (src[i-1] == 'e' || src[i-1] == 'E')
		if !(r >= '0' && r <= '9') && r != '.' && r != 'e' && r != 'E' && r != '_' && !isExpSign {
			break
		}
		i++
	}
	lit := strings.ReplaceAll(string(src[start:i]), "_", "")
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", lit)
	}
	out.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return i, nil
}

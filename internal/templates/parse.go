// SPDX-License-Identifier: MPL-2.0

package templates

import (
	"fmt"
	"strings"
)

// Statement opcodes of a compiled block.
const (
	OpText       = "text"
	OpAppend     = "append"
	OpTrusted    = "append-trusted"
	OpComment    = "comment"
	OpOpenBlock  = "open-block"
	OpElse       = "else"
	OpCloseBlock = "close-block"
)

// Statement is one instruction of a compiled block: an opcode and its
// operand (literal text or the raw mustache expression).
type Statement [2]string

// parseError is converted to a TransformError by the caller, which knows the
// file path.
type parseError struct {
	line, column int
	msg          string
}

func (e *parseError) Error() string { return fmt.Sprintf("%d:%d: %s", e.line, e.column, e.msg) }

// parse splits a template into text and mustache statements and checks that
// block helpers are balanced. It is a structural pass only; expressions are
// kept verbatim.
func parse(src string) ([]Statement, error) {
	var (
		out   []Statement
		open  []string
		start []int
		pos   int
	)

	for pos < len(src) {
		idx := strings.Index(src[pos:], "{{")
		if idx < 0 {
			out = append(out, Statement{OpText, src[pos:]})
			break
		}
		if idx > 0 {
			out = append(out, Statement{OpText, src[pos : pos+idx]})
		}
		pos += idx

		trusted := strings.HasPrefix(src[pos:], "{{{")
		openLen, closer := 2, "}}"
		if trusted {
			openLen, closer = 3, "}}}"
		}
		if strings.HasPrefix(src[pos:], "{{!--") {
			closer = "--}}"
		}
		end := strings.Index(src[pos+openLen:], closer)
		if end < 0 {
			line, col := position(src, pos)
			return nil, &parseError{line, col, "unclosed mustache"}
		}
		body := strings.TrimSpace(src[pos+openLen : pos+openLen+end])
		mustacheStart := pos
		pos += openLen + end + len(closer)

		switch {
		case trusted:
			out = append(out, Statement{OpTrusted, body})
		case strings.HasPrefix(body, "!"):
			out = append(out, Statement{OpComment, strings.TrimSpace(strings.Trim(body, "!-"))})
		case strings.HasPrefix(body, "#"):
			name := helperName(body[1:])
			if name == "" {
				line, col := position(src, mustacheStart)
				return nil, &parseError{line, col, "block without a helper name"}
			}
			open = append(open, name)
			start = append(start, mustacheStart)
			out = append(out, Statement{OpOpenBlock, strings.TrimSpace(body[1:])})
		case body == "else" || strings.HasPrefix(body, "else "):
			if len(open) == 0 {
				line, col := position(src, mustacheStart)
				return nil, &parseError{line, col, "{{else}} outside of a block"}
			}
			out = append(out, Statement{OpElse, strings.TrimSpace(strings.TrimPrefix(body, "else"))})
		case strings.HasPrefix(body, "/"):
			name := helperName(body[1:])
			line, col := position(src, mustacheStart)
			if len(open) == 0 {
				return nil, &parseError{line, col, fmt.Sprintf("{{/%s}} closes no block", name)}
			}
			if want := open[len(open)-1]; want != name {
				return nil, &parseError{line, col, fmt.Sprintf("{{/%s}} does not match {{#%s}}", name, want)}
			}
			open, start = open[:len(open)-1], start[:len(start)-1]
			out = append(out, Statement{OpCloseBlock, name})
		case body == "":
			line, col := position(src, mustacheStart)
			return nil, &parseError{line, col, "empty mustache"}
		default:
			out = append(out, Statement{OpAppend, body})
		}
	}

	if len(open) > 0 {
		line, col := position(src, start[len(start)-1])
		return nil, &parseError{line, col, fmt.Sprintf("unclosed block {{#%s}}", open[len(open)-1])}
	}
	return out, nil
}

func helperName(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// position returns the 1-based line and 0-based column of offset.
func position(src string, offset int) (int, int) {
	line := 1 + strings.Count(src[:offset], "\n")
	col := offset - (strings.LastIndex(src[:offset], "\n") + 1)
	return line, col
}

package sandbox

import (
	"fmt"
	"strings"
)

// scriptError is any failure raised while running a script: it carries the
// offending position so renderTrace can point a caret at it.
type scriptError struct {
	Line int
	Col  int
	Msg  string

	// contract marks a violation of the sandbox contract (for example a
	// write through a read-only binding) rather than a failure of the
	// script's own logic.
	contract bool
}

func (e *scriptError) Error() string {
	return fmt.Sprintf("script error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

func errAt(tok Token, format string, args ...any) error {
	return &scriptError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf(format, args...)}
}

func errContractAt(tok Token, format string, args ...any) error {
	return &scriptError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf(format, args...), contract: true}
}

// renderTrace builds a numbered source snippet with a caret under the
// failing column, one line of context either side:
//
//	script error at 2:14: unknown column "Valu"
//
//	   1 | output = input
//	   2 | output = input[input.Valu > 15]
//	     |              ^
func renderTrace(err error, src string) string {
	line, col, msg := 0, 0, err.Error()
	switch e := err.(type) {
	case *scriptError:
		line, col = e.Line, e.Col
	case *LexError:
		line, col = e.Line, e.Col
	case *ParseError:
		line, col = e.Line, e.Col
	default:
		return msg
	}

	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}

	var sb strings.Builder
	sb.WriteString(msg)
	sb.WriteString("\n\n")
	for n := line - 1; n <= line+1; n++ {
		if n < 1 || n > len(lines) {
			continue
		}
		fmt.Fprintf(&sb, "  %3d | %s\n", n, lines[n-1])
		if n == line {
			caret := col
			if caret < 1 {
				caret = 1
			}
			if caret > len(lines[n-1])+1 {
				caret = len(lines[n-1]) + 1
			}
			fmt.Fprintf(&sb, "      | %s^\n", strings.Repeat(" ", caret-1))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

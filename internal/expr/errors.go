package expr

import "fmt"

// UnsupportedExpressionError is returned for any syntax outside the
// deliberately small grammar this package supports.
type UnsupportedExpressionError struct {
	Expr   string
	Reason string
}

func (e *UnsupportedExpressionError) Error() string {
	return fmt.Sprintf("unsupported expression %q: %s", e.Expr, e.Reason)
}

// unsupported is a constructor shorthand used throughout the lexer and
// parser.
func unsupported(exprText, reason string, args ...any) *UnsupportedExpressionError {
	return &UnsupportedExpressionError{Expr: exprText, Reason: fmt.Sprintf(reason, args...)}
}

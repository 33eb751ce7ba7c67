package errors

import "fmt"

// Kind classifies a vigilo error for JSON-RPC error-code mapping and for
// the event outcome.code field on the capture path.
type Kind string

const (
	KindIO            Kind = "io"
	KindParse         Kind = "parse"
	KindSchema        Kind = "schema"
	KindTimeout       Kind = "timeout"
	KindSubprocess    Kind = "subprocess"
	KindCrypto        Kind = "crypto"
	KindLedger        Kind = "ledger"
	KindConfig        Kind = "config"
	KindNotFound      Kind = "not_found"
	KindForbiddenPath Kind = "forbidden_path"
)

// Error is a typed, wrapped error carrying a Kind used to classify it for
// JSON-RPC responses and ledger outcome codes.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a typed Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a typed Error of the given kind wrapping an underlying
// cause.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// As attempts to extract a *Error from err, returning ok=false if err is
// not (or does not wrap) one.
func As(err error) (*Error, bool) {
	var target *Error
	if stderrorsAs(err, &target) {
		return target, true
	}
	return nil, false
}

// stderrorsAs is a tiny indirection over errors.As to avoid importing the
// standard "errors" package under a name that collides with this package's
// own name in call sites that `import "vigilo/internal/errors"`.
func stderrorsAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// JSONRPCCode maps a Kind to the stable JSON-RPC error code vigilo's MCP
// dispatcher reports. Codes -32700/-32601/-32602 are the reserved
// parse-error/method-not-found/invalid-params codes from the JSON-RPC 2.0
// spec; every other Kind gets a dedicated code in the -32000..-32099
// "server error" range.
func (k Kind) JSONRPCCode() int {
	switch k {
	case KindParse:
		return -32700
	case KindSchema:
		return -32602
	case KindIO:
		return -32000
	case KindTimeout:
		return -32001
	case KindSubprocess:
		return -32002
	case KindCrypto:
		return -32003
	case KindLedger:
		return -32004
	case KindConfig:
		return -32005
	case KindNotFound:
		return -32006
	case KindForbiddenPath:
		return -32007
	default:
		return -32000
	}
}

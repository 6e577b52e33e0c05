package session

type verdictKind uint8

const (
	verdictOK verdictKind = iota
	verdictRetry
	verdictFatal
)

// Verdict is the decision of an Interpreter about one status byte.
type Verdict struct {
	kind verdictKind
	code int
}

// OK ends the status poll, unless the transport reports more status bytes pending.
func OK() Verdict { return Verdict{kind: verdictOK} }

// Retry polls the status byte again after a linear backoff.
func Retry() Verdict { return Verdict{kind: verdictRetry} }

// Fatal closes the session; code is reported through *FatalError.
func Fatal(code int) Verdict { return Verdict{kind: verdictFatal, code: code} }

// IsOK reports whether v is OK.
func (v Verdict) IsOK() bool { return v.kind == verdictOK }

// IsRetry reports whether v is Retry.
func (v Verdict) IsRetry() bool { return v.kind == verdictRetry }

// IsFatal reports whether v is Fatal.
func (v Verdict) IsFatal() bool { return v.kind == verdictFatal }

// Code returns the code of a Fatal verdict.
func (v Verdict) Code() int { return v.code }

func (v Verdict) String() string {
	switch v.kind {
	case verdictRetry:
		return "retry"
	case verdictFatal:
		return "fatal"
	default:
		return "ok"
	}
}

// Interpreter decides what a status byte means. tag names the primitive
// that triggered the poll ("write", "read", "query", "clear", "local",
// "trigger") and is meant for diagnostics.
type Interpreter func(stb byte, tag string) Verdict

// Resolver maps instrument names to address strings.
type Resolver interface {
	Resolve(name string) (address string, ok bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (string, bool)

// Resolve calls f(name).
func (f ResolverFunc) Resolve(name string) (string, bool) { return f(name) }

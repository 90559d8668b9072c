package core

import "strings"

// ScopeKind distinguishes the global channel from private pair channels.
type ScopeKind string

const (
	ScopeGlobal  ScopeKind = "global"
	ScopePrivate ScopeKind = "private"
)

// Scope identifies the channel a message belongs to. For private scopes
// the pair is stored in canonical (lexicographic) order, so both
// directions of the same conversation name one scope.
type Scope struct {
	Kind ScopeKind
	A    string
	B    string
}

// GlobalScope returns the singleton global scope.
func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// PrivateScope builds the canonical scope for a pair of users.
func PrivateScope(a, b string) Scope {
	if a > b {
		a, b = b, a
	}
	return Scope{Kind: ScopePrivate, A: a, B: b}
}

// ResolveScope maps a client chat request to a scope. me must be a bound
// session identity; with is the counterpart for private chats.
func ResolveScope(kind ScopeKind, me, with string) (Scope, *CoreError) {
	switch kind {
	case ScopeGlobal:
		return GlobalScope(), nil
	case ScopePrivate:
		with = strings.TrimSpace(with)
		if with == "" {
			return Scope{}, coreError(ErrCodeValidation, "counterpart is required for a private chat")
		}
		if with == me {
			return Scope{}, coreError(ErrCodeValidation, "cannot open a private chat with yourself")
		}
		return PrivateScope(me, with), nil
	default:
		return Scope{}, coreError(ErrCodeValidation, "unknown chat kind")
	}
}

// Key returns the subscription-map key for the scope.
func (s Scope) Key() string {
	if s.Kind == ScopeGlobal {
		return "global"
	}
	return "dm:" + s.A + ":" + s.B
}

// Other returns the counterpart of me in a private scope.
func (s Scope) Other(me string) string {
	if s.A == me {
		return s.B
	}
	return s.A
}

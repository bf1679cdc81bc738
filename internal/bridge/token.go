package bridge

import (
	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/pkg/schema"
)

// TokenStore reads and writes the resume token. The session copy is the
// durable one; a request parameter may override it for a single request.
type TokenStore struct {
	sessionKey string
}

// NewTokenStore creates a TokenStore writing to sessionKey.
func NewTokenStore(sessionKey string) TokenStore {
	return TokenStore{sessionKey: sessionKey}
}

// SessionKey returns the session key the token is stored under.
func (s TokenStore) SessionKey() string { return s.sessionKey }

// Find returns the token from the TokenKey request parameter, falling back
// to the session. "" means no token.
func (s TokenStore) Find(inv *dispatch.Invocation) string {
	if tok := inv.Parameter(TokenKey); tok != "" {
		return tok
	}
	return s.Load(inv)
}

// Load returns the token held in the session, "" when absent.
func (s TokenStore) Load(inv *dispatch.Invocation) string {
	if inv.Session == nil {
		return ""
	}
	v, ok := inv.Session.Get(s.sessionKey)
	if !ok {
		return ""
	}
	tok, _ := v.(string)
	return tok
}

// Store overwrites the session token. An empty token clears it.
func (s TokenStore) Store(inv *dispatch.Invocation, token string) error {
	if inv.Session == nil {
		if token == "" {
			return nil
		}
		return schema.NewErrorf(schema.ErrCodeConfiguration,
			"cannot store resume token for action %s: request has no session", inv.Proxy.ActionName)
	}
	if token == "" {
		inv.Session.Put(s.sessionKey, nil)
		return nil
	}
	inv.Session.Put(s.sessionKey, token)
	return nil
}

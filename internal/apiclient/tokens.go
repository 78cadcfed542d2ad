package apiclient

import (
	"context"

	"github.com/punchamoorthee/paysync/internal/store"
)

const DefaultAccessTokenKey = "starling_access_token"

// StoreTokens reads the access token from the local key-value store on every
// request, so a token written after startup is picked up.
type StoreTokens struct {
	KV  store.KV
	Key string
}

func (s StoreTokens) Token(ctx context.Context) string {
	key := s.Key
	if key == "" {
		key = DefaultAccessTokenKey
	}
	token, ok, err := s.KV.Get(ctx, key)
	if err != nil || !ok {
		return ""
	}
	return token
}

// StaticToken always yields the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) string { return string(t) }

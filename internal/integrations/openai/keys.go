package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// KeySource supplies the bearer token for the completion endpoint.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a key read once from the environment.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" {
		return "", errors.New("openai: API key is empty")
	}
	return key, nil
}

// TokenGetter reads a JSON token parameter. *paramstore.Client satisfies it.
type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// ParamStoreKey fetches the key from Parameter Store on first use and reuses
// it for the lifetime of the process.
type ParamStoreKey struct {
	getter TokenGetter
	name   string

	once sync.Once
	key  string
	err  error
}

// NewParamStoreKey reads the key from <paramPrefix>/together-api-key.
func NewParamStoreKey(getter TokenGetter, paramPrefix string) (*ParamStoreKey, error) {
	if getter == nil {
		return nil, errors.New("openai: token getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	return &ParamStoreKey{getter: getter, name: paramPrefix + "/together-api-key"}, nil
}

func (p *ParamStoreKey) APIKey(ctx context.Context) (string, error) {
	p.once.Do(func() {
		key, err := p.getter.GetToken(ctx, p.name)
		if err != nil {
			p.err = fmt.Errorf("openai: fetch API key: %w", err)
			return
		}
		p.key = key
	})
	return p.key, p.err
}

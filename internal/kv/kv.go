// Package kv defines the key-value store the credential store and ledger
// persist into, mirroring the browser localStorage layout:
// string keys mapping to JSON values.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Logical keys of the persisted layout.
const (
	KeyUsers           = "users"
	KeyCurrentUser     = "currentUser"
	TransactionsPrefix = "transactions_"
)

var ErrEmptyKey = errors.New("empty key")

// Store is a synchronous key-value mapping. A missing key is reported with
// ok == false, never as an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// TransactionsKey returns the per-user ledger key.
func TransactionsKey(userID string) string {
	return TransactionsPrefix + userID
}

// GetJSON reads key and decodes it into a T. Absent keys yield the zero T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var out T
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, true, nil
}

// SetJSON encodes v and writes it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

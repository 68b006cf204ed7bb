package ports

import "context"

// KeyValueStore is the browser-storage contract of the console: plain string
// values addressed by key. Get reports ok=false for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

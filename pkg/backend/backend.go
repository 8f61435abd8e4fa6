// Package backend provides the optional remote row store for posts plus the
// push channel that delivers newly inserted rows to subscribers. Absence of
// backend configuration is an expected state, represented by the explicit
// NotConfigured variant rather than a nil handle.
package backend

import (
	"context"
	"errors"

	"github.com/SophHealth/soph-mvp/engine/domain"
)

// ErrNotConfigured is returned by every operation on the NotConfigured
// variant. Callers fall back to the bundled dataset.
var ErrNotConfigured = errors.New("backend: not configured")

// Store is the remote posts row store the stream source talks to.
type Store interface {
	// Recent returns up to limit rows ordered by timestamp ascending.
	Recent(ctx context.Context, limit int) ([]domain.RawPost, error)
	// Insert appends one row and announces it on the push channel.
	Insert(ctx context.Context, post domain.RawPost) error
	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)
	// Subscribe registers a handler for newly inserted rows, in arrival
	// order. The returned cancel tears the subscription down.
	Subscribe(handler func(domain.RawPost)) (cancel func(), err error)
}

// NotConfigured is the absent-backend variant of Store.
type NotConfigured struct{}

func (NotConfigured) Recent(context.Context, int) ([]domain.RawPost, error) {
	return nil, ErrNotConfigured
}

func (NotConfigured) Insert(context.Context, domain.RawPost) error { return ErrNotConfigured }

func (NotConfigured) Count(context.Context) (int, error) { return 0, ErrNotConfigured }

func (NotConfigured) Subscribe(func(domain.RawPost)) (func(), error) {
	return nil, ErrNotConfigured
}

// Config holds backend connection settings read from the environment.
type Config struct {
	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string
	NATSURL   string
}

// Configured reports whether both the row store and the push channel are set.
func (c Config) Configured() bool {
	return c.Neo4jURL != "" && c.NATSURL != ""
}

// Package pg is the postgres storage adapter. Tokens and codes are persisted
// by SHA-256 digest, never in the clear.
package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/littlejohn/internal/oauth2"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same repositories serve both transactional and direct reads.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements oauth2.Storage over a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	scopes *oauth2.ScopeCatalog
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, scopes: oauth2.NewScopeCatalog()}
}

// Connect opens and pings a pool.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (s *Store) Stores() oauth2.Stores {
	return s.storesFor(s.pool)
}

// RunInTx runs fn against repositories bound to a single transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, st oauth2.Stores) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, s.storesFor(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) storesFor(q querier) oauth2.Stores {
	return oauth2.Stores{
		Clients:       &clientRepo{q: q},
		AccessTokens:  &accessTokenRepo{q: q, scopes: s.scopes},
		RefreshTokens: &refreshTokenRepo{q: q, scopes: s.scopes},
		AuthCodes:     &authCodeRepo{q: q, scopes: s.scopes},
		Scopes:        s.scopes,
		Sessions:      &sessionRepo{q: q, scopes: s.scopes},
	}
}

// scopeSetFromIDs rebuilds a scope set from stored identifiers. IDs no longer
// in the catalog are dropped.
func scopeSetFromIDs(ctx context.Context, catalog *oauth2.ScopeCatalog, ids []string) oauth2.ScopeSet {
	var out oauth2.ScopeSet
	for _, id := range ids {
		if sc, err := catalog.Get(ctx, id); err == nil {
			out = append(out, *sc)
		}
	}
	return out
}

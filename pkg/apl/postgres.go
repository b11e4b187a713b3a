// pkg/apl/postgres.go
package apl

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAPL stores auth records in a single table keyed by Saleor API URL.
// Suited to deployments that already run Postgres and want the credential
// store under the same backup/replication regime.
type PostgresAPL struct {
	pool *pgxpool.Pool
}

func NewPostgresAPL(pool *pgxpool.Pool) *PostgresAPL {
	return &PostgresAPL{pool: pool}
}

// EnsureSchema creates the auth table if it does not already exist. Safe to
// call repeatedly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS app_auth (
  saleor_api_url text PRIMARY KEY,
  token text NOT NULL,
  app_id text NOT NULL,
  dashboard_url text NOT NULL DEFAULT '',
  domain text NOT NULL DEFAULT '',
  jwks text NOT NULL DEFAULT '',
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (p *PostgresAPL) Get(ctx context.Context, saleorAPIURL string) (*AuthData, error) {
	if p.pool == nil {
		return nil, &NotConfiguredError{Missing: []string{"databaseURL"}}
	}
	row := p.pool.QueryRow(ctx,
		`SELECT saleor_api_url, token, app_id, dashboard_url, domain, jwks FROM app_auth WHERE saleor_api_url=$1`,
		saleorAPIURL)
	var d AuthData
	err := row.Scan(&d.SaleorAPIURL, &d.Token, &d.AppID, &d.DashboardURL, &d.Domain, &d.JWKS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &TransportError{Op: "get", Err: err}
	}
	return &d, nil
}

func (p *PostgresAPL) Set(ctx context.Context, data AuthData) error {
	if p.pool == nil {
		return &NotConfiguredError{Missing: []string{"databaseURL"}}
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO app_auth(saleor_api_url, token, app_id, dashboard_url, domain, jwks)
  VALUES ($1,$2,$3,$4,$5,$6)
  ON CONFLICT (saleor_api_url) DO UPDATE SET
    token=EXCLUDED.token, app_id=EXCLUDED.app_id, dashboard_url=EXCLUDED.dashboard_url,
    domain=EXCLUDED.domain, jwks=EXCLUDED.jwks, updated_at=NOW()`,
		data.SaleorAPIURL, data.Token, data.AppID, data.DashboardURL, data.Domain, data.JWKS)
	if err != nil {
		return &TransportError{Op: "set", Err: err}
	}
	return nil
}

func (p *PostgresAPL) Delete(ctx context.Context, saleorAPIURL string) error {
	if p.pool == nil {
		return &NotConfiguredError{Missing: []string{"databaseURL"}}
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM app_auth WHERE saleor_api_url=$1`, saleorAPIURL); err != nil {
		return &TransportError{Op: "delete", Err: err}
	}
	return nil
}

func (p *PostgresAPL) GetAll(ctx context.Context) ([]AuthData, error) {
	if p.pool == nil {
		return nil, &NotConfiguredError{Missing: []string{"databaseURL"}}
	}
	rows, err := p.pool.Query(ctx, `SELECT saleor_api_url, token, app_id, dashboard_url, domain, jwks FROM app_auth`)
	if err != nil {
		return nil, &TransportError{Op: "getAll", Err: err}
	}
	defer rows.Close()
	var out []AuthData
	for rows.Next() {
		var d AuthData
		if err := rows.Scan(&d.SaleorAPIURL, &d.Token, &d.AppID, &d.DashboardURL, &d.Domain, &d.JWKS); err != nil {
			return nil, &TransportError{Op: "getAll", Err: err}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransportError{Op: "getAll", Err: err}
	}
	return out, nil
}

func (p *PostgresAPL) IsReady(ctx context.Context) ReadyResult {
	if p.pool == nil {
		return ReadyResult{Ready: false, Missing: []string{"databaseURL"}}
	}
	return ReadyResult{Ready: true}
}

func (p *PostgresAPL) IsConfigured(ctx context.Context) ConfiguredResult {
	if p.pool == nil {
		return ConfiguredResult{Configured: false, Err: &NotConfiguredError{Missing: []string{"databaseURL"}}}
	}
	return ConfiguredResult{Configured: true}
}

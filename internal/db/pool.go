package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

// Connect establishes a pgx connection pool and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*Pool, error) {
	conf, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, err
	}
	conf.MaxConns = 8
	if cfg.MaxConns > 0 {
		conf.MaxConns = cfg.MaxConns
	}
	conf.MinConns = 0
	conf.MaxConnLifetime = 55 * time.Minute
	conf.MaxConnIdleTime = 10 * time.Minute
	conf.HealthCheckPeriod = 30 * time.Second

	p, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return &Pool{Pool: p}, nil
}

// Close closes the underlying pool.
func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// Migrate creates the catalog and run ledger tables if missing.
func Migrate(ctx context.Context, p *Pool) error {
	_, err := p.Exec(ctx, schema)
	return err
}

const schema = `
create table if not exists catalog_table (
	db             text  not null,
	name           text  not null,
	location       text  not null default '',
	format         text  not null default '',
	columns        jsonb not null default '[]',
	partition_keys jsonb not null default '[]',
	parameters     jsonb not null default '{}',
	primary key (db, name)
);

create table if not exists catalog_partition (
	db         text  not null,
	table_name text  not null,
	name       text  not null,
	location   text  not null default '',
	parameters jsonb not null default '{}',
	primary key (db, table_name, name),
	foreign key (db, table_name) references catalog_table (db, name) on delete cascade
);

create table if not exists replication_run (
	id          bigserial   primary key,
	workflow_id text        not null unique,
	output_uri  text        not null,
	status      text        not null,
	error       text,
	stats       jsonb,
	created_at  timestamptz not null default now(),
	updated_at  timestamptz not null default now()
);
`

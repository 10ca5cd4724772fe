package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yourorg/catalog-replication/internal/catalog"
)

// Catalog is a catalog.Writer backed by the catalog_table and
// catalog_partition tables of a catalog service database.
type Catalog struct {
	p *Pool
	// owned pools are closed by Close.
	owned bool
}

var _ catalog.Writer = (*Catalog)(nil)

// NewCatalog serves a catalog from an existing pool. Close leaves the pool open.
func NewCatalog(p *Pool) *Catalog { return &Catalog{p: p} }

// OpenCatalog connects to the catalog database at dsn. Close releases the
// connection pool.
func OpenCatalog(ctx context.Context, dsn string) (*Catalog, error) {
	p, err := Connect(ctx, FromDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect catalog: %w", err)
	}
	return &Catalog{p: p, owned: true}, nil
}

func (c *Catalog) Close() error {
	if c.owned {
		c.p.Close()
	}
	return nil
}

func (c *Catalog) GetTable(ctx context.Context, db, table string) (*catalog.Table, error) {
	const q = `select location, format, columns, partition_keys, parameters
               from catalog_table where db=$1 and name=$2`
	t := &catalog.Table{DB: db, Name: table}
	var cols, keys, params []byte
	err := c.p.QueryRow(ctx, q, db, table).Scan(&t.Location, &t.Format, &cols, &keys, &params)
	if err != nil {
		return nil, notFound(mapRowErr(err), "table %s.%s", db, table)
	}
	if err := unmarshalAll(cols, &t.Columns, keys, &t.PartitionKeys, params, &t.Parameters); err != nil {
		return nil, fmt.Errorf("decode table %s.%s: %w", db, table, err)
	}
	return t, nil
}

func (c *Catalog) GetPartition(ctx context.Context, db, table, partition string) (*catalog.Partition, error) {
	const q = `select location, parameters from catalog_partition
               where db=$1 and table_name=$2 and name=$3`
	p := &catalog.Partition{DB: db, Table: table, Name: partition}
	var params []byte
	err := c.p.QueryRow(ctx, q, db, table, partition).Scan(&p.Location, &params)
	if err != nil {
		return nil, notFound(mapRowErr(err), "partition %s.%s/%s", db, table, partition)
	}
	if err := unmarshalAll(params, &p.Parameters); err != nil {
		return nil, fmt.Errorf("decode partition %s.%s/%s: %w", db, table, partition, err)
	}
	return p, nil
}

func (c *Catalog) GetPartitionNames(ctx context.Context, db, table string) ([]string, error) {
	return c.strings(ctx, `select name from catalog_partition where db=$1 and table_name=$2 order by name`, db, table)
}

func (c *Catalog) ListDatabases(ctx context.Context) ([]string, error) {
	return c.strings(ctx, `select distinct db from catalog_table order by db`)
}

func (c *Catalog) ListTables(ctx context.Context, db string) ([]string, error) {
	return c.strings(ctx, `select name from catalog_table where db=$1 order by name`, db)
}

func (c *Catalog) CreateTable(ctx context.Context, t *catalog.Table) error {
	const q = `insert into catalog_table (db, name, location, format, columns, partition_keys, parameters)
               values ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7::jsonb)`
	cols, keys, params, err := tableJSON(t)
	if err != nil {
		return err
	}
	_, err = c.p.Exec(ctx, q, t.DB, t.Name, t.Location, t.Format, cols, keys, params)
	return mapPgErr(err)
}

func (c *Catalog) AlterTable(ctx context.Context, t *catalog.Table) error {
	const q = `update catalog_table
               set location=$3, format=$4, columns=$5::jsonb, partition_keys=$6::jsonb, parameters=$7::jsonb
               where db=$1 and name=$2`
	cols, keys, params, err := tableJSON(t)
	if err != nil {
		return err
	}
	ct, err := c.p.Exec(ctx, q, t.DB, t.Name, t.Location, t.Format, cols, keys, params)
	if err != nil {
		return mapPgErr(err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("table %s.%s: %w", t.DB, t.Name, catalog.ErrNotFound)
	}
	return nil
}

// DropTable removes the table and, by cascade, its partitions.
func (c *Catalog) DropTable(ctx context.Context, db, table string) error {
	ct, err := c.p.Exec(ctx, `delete from catalog_table where db=$1 and name=$2`, db, table)
	if err != nil {
		return mapPgErr(err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("table %s.%s: %w", db, table, catalog.ErrNotFound)
	}
	return nil
}

// PutPartition upserts a partition; its table must exist.
func (c *Catalog) PutPartition(ctx context.Context, p *catalog.Partition) error {
	const q = `insert into catalog_partition (db, table_name, name, location, parameters)
               values ($1, $2, $3, $4, $5::jsonb)
               on conflict (db, table_name, name) do update
               set location=excluded.location, parameters=excluded.parameters`
	params, err := json.Marshal(nonNilMap(p.Parameters))
	if err != nil {
		return err
	}
	_, err = c.p.Exec(ctx, q, p.DB, p.Table, p.Name, p.Location, string(params))
	return mapPgErr(err)
}

func (c *Catalog) strings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := c.p.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// notFound rewrites ErrNotFound as catalog.ErrNotFound for the named object.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf(format+": %w", append(args, catalog.ErrNotFound)...)
	}
	return err
}

func tableJSON(t *catalog.Table) (cols, keys, params string, err error) {
	var b [3][]byte
	for i, v := range []any{nonNilCols(t.Columns), nonNilCols(t.PartitionKeys), nonNilMap(t.Parameters)} {
		if b[i], err = json.Marshal(v); err != nil {
			return "", "", "", err
		}
	}
	return string(b[0]), string(b[1]), string(b[2]), nil
}

// unmarshalAll takes (data, target) pairs.
func unmarshalAll(pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		data, _ := pairs[i].([]byte)
		if len(data) == 0 {
			continue
		}
		if err := json.Unmarshal(data, pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func nonNilCols(c []catalog.Column) []catalog.Column {
	if c == nil {
		return []catalog.Column{}
	}
	return c
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

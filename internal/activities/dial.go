package activities

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/yourorg/catalog-replication/internal/catalog"
	"github.com/yourorg/catalog-replication/internal/db"
)

// CatalogDialer returns a Dialer for postgres:// catalog services and
// memory://<snapshot.json> catalogs. A snapshot is loaded once and the same
// in-memory catalog is returned on every dial.
func CatalogDialer() Dialer {
	var mu sync.Mutex
	mems := make(map[string]*catalog.Memory)
	return func(ctx context.Context, dsn string) (catalog.Writer, error) {
		switch {
		case strings.HasPrefix(dsn, "memory://"):
			mu.Lock()
			defer mu.Unlock()
			if m, ok := mems[dsn]; ok {
				return m, nil
			}
			f, err := os.Open(strings.TrimPrefix(dsn, "memory://"))
			if err != nil {
				return nil, err
			}
			defer f.Close()
			m, err := catalog.LoadMemory(f)
			if err != nil {
				return nil, err
			}
			mems[dsn] = m
			return m, nil
		case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
			return db.OpenCatalog(ctx, dsn)
		default:
			return nil, fmt.Errorf("unsupported catalog DSN %q", redact(dsn))
		}
	}
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	return "..."
}

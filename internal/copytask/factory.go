package copytask

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/catalog-replication/internal/catalog"
)

// ErrOutsideRoot is returned when a source location is not under the
// source filesystem root and so has no destination equivalent.
var ErrOutsideRoot = errors.New("location outside source filesystem root")

// ObjectFactory maps source catalog objects onto the destination cluster.
// Locations under SrcRoot are rebased onto DstRoot; an empty SrcRoot keeps
// locations unchanged (shared storage).
type ObjectFactory struct {
	SrcCluster string
	SrcRoot    string
	DstRoot    string
}

// Location rebases a source location.
func (f ObjectFactory) Location(src string) (string, error) {
	if src == "" || f.SrcRoot == "" {
		return src, nil
	}
	root := strings.TrimSuffix(f.SrcRoot, "/")
	if src != root && !strings.HasPrefix(src, root+"/") {
		return "", fmt.Errorf("%w: %s not under %s", ErrOutsideRoot, src, f.SrcRoot)
	}
	return strings.TrimSuffix(f.DstRoot, "/") + strings.TrimPrefix(src, root), nil
}

// Table returns the table the destination should hold for src.
func (f ObjectFactory) Table(src *catalog.Table) (*catalog.Table, error) {
	loc, err := f.Location(src.Location)
	if err != nil {
		return nil, err
	}
	t := src.Clone()
	t.Location = loc
	t.Parameters = f.stamp(src.Parameters)
	return t, nil
}

// Partition returns the partition the destination should hold for src.
func (f ObjectFactory) Partition(src *catalog.Partition) (*catalog.Partition, error) {
	loc, err := f.Location(src.Location)
	if err != nil {
		return nil, err
	}
	p := src.Clone()
	p.Location = loc
	p.Parameters = f.stamp(src.Parameters)
	return p, nil
}

// stamp copies params, recording replication ownership and the source DDL
// time. The destination catalog assigns its own DDL time.
func (f ObjectFactory) stamp(params map[string]string) map[string]string {
	out := make(map[string]string, len(params)+2)
	for k, v := range params {
		out[k] = v
	}
	delete(out, catalog.ParamLastDDLTime)
	out[catalog.ParamReplicationSourceCluster] = f.SrcCluster
	out[catalog.ParamReplicationSourceLDT] = params[catalog.ParamLastDDLTime]
	return out
}

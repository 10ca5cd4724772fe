package catalog

import (
	"maps"
	"slices"
)

// Well-known parameter keys stamped on replicated objects.
const (
	ParamReplicationSourceCluster = "replication.source.cluster"
	ParamReplicationSourceLDT     = "replication.source.last_ddl_time"
	ParamLastDDLTime              = "transient_lastDdlTime"
)

// Column is a single column of a table schema or partition key.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is the catalog metadata of one table.
type Table struct {
	DB            string            `json:"db"`
	Name          string            `json:"name"`
	Location      string            `json:"location"`
	Format        string            `json:"format"`
	Columns       []Column          `json:"columns"`
	PartitionKeys []Column          `json:"partition_keys"`
	Parameters    map[string]string `json:"parameters"`
}

// IsPartitioned reports whether the table has at least one partition key column.
func (t *Table) IsPartitioned() bool { return t != nil && len(t.PartitionKeys) > 0 }

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := *t
	c.Columns = slices.Clone(t.Columns)
	c.PartitionKeys = slices.Clone(t.PartitionKeys)
	c.Parameters = maps.Clone(t.Parameters)
	return &c
}

// Partition is the catalog metadata of one partition.
type Partition struct {
	DB         string            `json:"db"`
	Table      string            `json:"table"`
	Name       string            `json:"name"`
	Location   string            `json:"location"`
	Parameters map[string]string `json:"parameters"`
}

func (p *Partition) Clone() *Partition {
	if p == nil {
		return nil
	}
	c := *p
	c.Parameters = maps.Clone(p.Parameters)
	return &c
}

// SamePartitionKeys reports whether two tables are partitioned by the same columns, in order.
func SamePartitionKeys(a, b *Table) bool {
	return slices.Equal(a.PartitionKeys, b.PartitionKeys)
}

// IsReplicaOf reports whether t was created by replication from cluster.
func (t *Table) IsReplicaOf(cluster string) bool {
	return t != nil && cluster != "" && t.Parameters[ParamReplicationSourceCluster] == cluster
}

// IsReplicaOf reports whether p was created by replication from cluster.
func (p *Partition) IsReplicaOf(cluster string) bool {
	return p != nil && cluster != "" && p.Parameters[ParamReplicationSourceCluster] == cluster
}

// TableMetadataEqual compares the replicated attributes of two tables:
// location, format, schema, partition keys and the source DDL time they
// were copied from. Catalog-assigned parameters are ignored.
func TableMetadataEqual(a, b *Table) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Location == b.Location &&
		a.Format == b.Format &&
		slices.Equal(a.Columns, b.Columns) &&
		slices.Equal(a.PartitionKeys, b.PartitionKeys) &&
		a.Parameters[ParamReplicationSourceLDT] == b.Parameters[ParamReplicationSourceLDT]
}

// PartitionMetadataEqual is TableMetadataEqual for partitions.
func PartitionMetadataEqual(a, b *Partition) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Location == b.Location &&
		a.Parameters[ParamReplicationSourceLDT] == b.Parameters[ParamReplicationSourceLDT]
}

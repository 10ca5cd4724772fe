package catalog

import "strings"

// ObjectSpec identifies a table, or a partition of a table when Partition is set.
type ObjectSpec struct {
	DB        string
	Table     string
	Partition string // e.g. "ds=2024-01-01/hr=00"; empty for table granularity
}

func NewTableSpec(db, table string) ObjectSpec { return ObjectSpec{DB: db, Table: table} }

func NewPartitionSpec(db, table, partition string) ObjectSpec {
	return ObjectSpec{DB: db, Table: table, Partition: partition}
}

func (s ObjectSpec) IsPartition() bool { return s.Partition != "" }

// TableSpec returns the spec of the table owning s.
func (s ObjectSpec) TableSpec() ObjectSpec { return ObjectSpec{DB: s.DB, Table: s.Table} }

func (s ObjectSpec) String() string {
	var sb strings.Builder
	sb.WriteString(s.DB)
	sb.WriteByte('.')
	sb.WriteString(s.Table)
	if s.Partition != "" {
		sb.WriteByte('/')
		sb.WriteString(s.Partition)
	}
	return sb.String()
}

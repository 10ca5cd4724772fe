package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Memory is an in-process catalog. It backs local runs from JSON snapshots
// and the fakes used across the test suite.
type Memory struct {
	mu         sync.Mutex
	tables     map[ObjectSpec]*Table
	partitions map[ObjectSpec]*Partition

	// Calls counts every read and write, by method name.
	Calls map[string]int
	// Fail makes the named method return the given error.
	Fail   map[string]error
	closes int
}

func NewMemory() *Memory {
	return &Memory{
		tables:     make(map[ObjectSpec]*Table),
		partitions: make(map[ObjectSpec]*Partition),
		Calls:      make(map[string]int),
		Fail:       make(map[string]error),
	}
}

// Snapshot is the JSON form accepted by LoadMemory.
type Snapshot struct {
	Tables     []*Table     `json:"tables"`
	Partitions []*Partition `json:"partitions"`
}

// LoadMemory builds a Memory catalog from a JSON snapshot.
func LoadMemory(r io.Reader) (*Memory, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode catalog snapshot: %w", err)
	}
	m := NewMemory()
	for _, t := range s.Tables {
		m.PutTable(t)
	}
	for _, p := range s.Partitions {
		m.PutPartition(p)
	}
	return m, nil
}

// PutTable stores a copy of t, replacing any existing table.
func (m *Memory) PutTable(t *Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[NewTableSpec(t.DB, t.Name)] = t.Clone()
}

// PutPartition stores a copy of p.
func (m *Memory) PutPartition(p *Partition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partitions[NewPartitionSpec(p.DB, p.Table, p.Name)] = p.Clone()
}

func (m *Memory) DeletePartition(db, table, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.partitions, NewPartitionSpec(db, table, name))
}

// TotalCalls sums Calls across all methods.
func (m *Memory) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		n += c
	}
	return n
}

// Closes reports how many times Close was called. Memory stays usable after
// Close so one instance can stand in for successive client sessions.
func (m *Memory) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// enter records a call; callers must hold m.mu.
func (m *Memory) enter(method string) error {
	m.Calls[method]++
	return m.Fail[method]
}

func (m *Memory) GetTable(_ context.Context, db, table string) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetTable"); err != nil {
		return nil, err
	}
	t, ok := m.tables[NewTableSpec(db, table)]
	if !ok {
		return nil, fmt.Errorf("table %s.%s: %w", db, table, ErrNotFound)
	}
	return t.Clone(), nil
}

func (m *Memory) GetPartition(_ context.Context, db, table, partition string) (*Partition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetPartition"); err != nil {
		return nil, err
	}
	p, ok := m.partitions[NewPartitionSpec(db, table, partition)]
	if !ok {
		return nil, fmt.Errorf("partition %s.%s/%s: %w", db, table, partition, ErrNotFound)
	}
	return p.Clone(), nil
}

func (m *Memory) GetPartitionNames(_ context.Context, db, table string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetPartitionNames"); err != nil {
		return nil, err
	}
	var out []string
	for s := range m.partitions {
		if s.DB == db && s.Table == table {
			out = append(out, s.Partition)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListDatabases(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListDatabases"); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for s := range m.tables {
		seen[s.DB] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for db := range seen {
		out = append(out, db)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListTables(_ context.Context, db string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListTables"); err != nil {
		return nil, err
	}
	var out []string
	for s := range m.tables {
		if s.DB == db {
			out = append(out, s.Table)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) CreateTable(_ context.Context, t *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateTable"); err != nil {
		return err
	}
	key := NewTableSpec(t.DB, t.Name)
	if _, ok := m.tables[key]; ok {
		return fmt.Errorf("create table %s: already exists", key)
	}
	m.tables[key] = t.Clone()
	return nil
}

func (m *Memory) AlterTable(_ context.Context, t *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AlterTable"); err != nil {
		return err
	}
	key := NewTableSpec(t.DB, t.Name)
	if _, ok := m.tables[key]; !ok {
		return fmt.Errorf("alter table %s: %w", key, ErrNotFound)
	}
	m.tables[key] = t.Clone()
	return nil
}

// DropTable removes the table and all of its partitions.
func (m *Memory) DropTable(_ context.Context, db, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DropTable"); err != nil {
		return err
	}
	key := NewTableSpec(db, table)
	if _, ok := m.tables[key]; !ok {
		return fmt.Errorf("drop table %s: %w", key, ErrNotFound)
	}
	delete(m.tables, key)
	for s := range m.partitions {
		if s.DB == db && s.Table == table {
			delete(m.partitions, s)
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

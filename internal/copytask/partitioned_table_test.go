package copytask

import (
	"context"
	"errors"
	"testing"

	"github.com/yourorg/catalog-replication/internal/catalog"
)

var factory = ObjectFactory{SrcCluster: "src", SrcRoot: "s3://src-wh", DstRoot: "s3://dst-wh"}

func partitioned(keys ...string) *catalog.Table {
	t := &catalog.Table{
		DB: "d", Name: "t", Location: "s3://src-wh/d/t", Format: "parquet",
		Columns:    []catalog.Column{{Name: "id", Type: "bigint"}},
		Parameters: map[string]string{catalog.ParamLastDDLTime: "100"},
	}
	for _, k := range keys {
		t.PartitionKeys = append(t.PartitionKeys, catalog.Column{Name: k, Type: "string"})
	}
	return t
}

func newTask(src, dst *catalog.Memory) *PartitionedTableTask {
	return &PartitionedTableTask{Src: src, Dst: dst, Factory: factory, Spec: catalog.NewTableSpec("d", "t")}
}

func TestFactoryLocation(t *testing.T) {
	cases := map[string]string{
		"s3://src-wh/d/t": "s3://dst-wh/d/t",
		"s3://src-wh":     "s3://dst-wh",
		"":                "",
	}
	for in, want := range cases {
		got, err := factory.Location(in)
		if err != nil || got != want {
			t.Fatalf("Location(%q)=%q,%v; want %q", in, got, err, want)
		}
	}
	if _, err := factory.Location("s3://src-wh2/x"); !errors.Is(err, ErrOutsideRoot) {
		t.Fatalf("expected ErrOutsideRoot, got %v", err)
	}
}

func TestFactoryTableStampsOwnership(t *testing.T) {
	got, err := factory.Table(partitioned("ds"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Parameters[catalog.ParamReplicationSourceCluster] != "src" {
		t.Fatalf("missing ownership stamp: %v", got.Parameters)
	}
	if got.Parameters[catalog.ParamReplicationSourceLDT] != "100" {
		t.Fatalf("missing source ldt: %v", got.Parameters)
	}
	if _, ok := got.Parameters[catalog.ParamLastDDLTime]; ok {
		t.Fatalf("destination ldt must not be copied")
	}
}

func TestRunCreatesThenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src, dst := catalog.NewMemory(), catalog.NewMemory()
	src.PutTable(partitioned("ds"))

	st, err := newTask(src, dst).Run(ctx)
	if err != nil || st != StatusCreated {
		t.Fatalf("first run: %v %v", st, err)
	}
	// Second run, as in the commit phase, must not touch the destination.
	before := dst.Calls["CreateTable"] + dst.Calls["AlterTable"] + dst.Calls["DropTable"]
	st, err = newTask(src, dst).Run(ctx)
	if err != nil || st != StatusUnchanged {
		t.Fatalf("second run: %v %v", st, err)
	}
	after := dst.Calls["CreateTable"] + dst.Calls["AlterTable"] + dst.Calls["DropTable"]
	if after != before {
		t.Fatalf("idempotent re-run mutated destination: %d writes", after-before)
	}
}

func TestRunRecreatesOnPartitionKeyChange(t *testing.T) {
	ctx := context.Background()
	src, dst := catalog.NewMemory(), catalog.NewMemory()
	src.PutTable(partitioned("ds"))
	if _, err := newTask(src, dst).Run(ctx); err != nil {
		t.Fatal(err)
	}
	dst.PutPartition(&catalog.Partition{DB: "d", Table: "t", Name: "ds=1"})

	src.PutTable(partitioned("ds", "hr"))
	st, err := newTask(src, dst).Run(ctx)
	if err != nil || st != StatusRecreated {
		t.Fatalf("run: %v %v", st, err)
	}
	got, _ := dst.GetTable(ctx, "d", "t")
	if len(got.PartitionKeys) != 2 {
		t.Fatalf("partition keys not updated: %v", got.PartitionKeys)
	}
	names, _ := dst.GetPartitionNames(ctx, "d", "t")
	if len(names) != 0 {
		t.Fatalf("stale partitions survived recreate: %v", names)
	}
	// And again: nothing left to do.
	if st, err := newTask(src, dst).Run(ctx); err != nil || st != StatusUnchanged {
		t.Fatalf("re-run: %v %v", st, err)
	}
}

func TestRunAltersOnSchemaChange(t *testing.T) {
	ctx := context.Background()
	src, dst := catalog.NewMemory(), catalog.NewMemory()
	src.PutTable(partitioned("ds"))
	if _, err := newTask(src, dst).Run(ctx); err != nil {
		t.Fatal(err)
	}
	changed := partitioned("ds")
	changed.Columns = append(changed.Columns, catalog.Column{Name: "name", Type: "string"})
	src.PutTable(changed)
	if st, err := newTask(src, dst).Run(ctx); err != nil || st != StatusAltered {
		t.Fatalf("run: %v %v", st, err)
	}
}

func TestRunConflictPolicy(t *testing.T) {
	ctx := context.Background()
	src, dst := catalog.NewMemory(), catalog.NewMemory()
	src.PutTable(partitioned("ds"))
	foreign := partitioned("ds")
	foreign.Location = "s3://dst-wh/other"
	dst.PutTable(foreign)

	task := newTask(src, dst)
	task.Conflict = ConflictFail
	if _, err := task.Run(ctx); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	task.Conflict = ConflictOverwrite
	if st, err := task.Run(ctx); err != nil || st != StatusAltered {
		t.Fatalf("overwrite run: %v %v", st, err)
	}
}

func TestRunNotCompletableWhenSourceGone(t *testing.T) {
	st, err := newTask(catalog.NewMemory(), catalog.NewMemory()).Run(context.Background())
	if err != nil || st != StatusNotCompletable {
		t.Fatalf("run: %v %v", st, err)
	}
}

func TestRunPropagatesCatalogErrors(t *testing.T) {
	src, dst := catalog.NewMemory(), catalog.NewMemory()
	src.PutTable(partitioned("ds"))
	boom := errors.New("metastore down")
	dst.Fail["CreateTable"] = boom
	if _, err := newTask(src, dst).Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

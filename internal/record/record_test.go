package record

import (
	"errors"
	"testing"
	"time"

	"github.com/yourorg/catalog-replication/internal/catalog"
	"github.com/yourorg/catalog-replication/internal/estimate"
)

func TestMarshalTableLevelNoOp(t *testing.T) {
	line, err := New(estimate.NoOpEstimate(), catalog.NewTableSpec("d", "t")).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	want := "no-op\t\t\tfalse\tfalse\td\tt\t\t"
	if line != want {
		t.Fatalf("got %q want %q", line, want)
	}
}

func TestMarshalCheckPartition(t *testing.T) {
	r := New(estimate.CheckPartitionEstimate(), catalog.NewPartitionSpec("d", "t2", "ds=2024-01-01/hr=00"))
	line, err := r.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	want := "check-partition\t\t\tfalse\tfalse\td\tt2\tds=2024-01-01/hr=00\t"
	if line != want {
		t.Fatalf("got %q want %q", line, want)
	}
}

func TestParseReversesMarshal(t *testing.T) {
	in := New(estimate.TaskEstimate{
		Type: estimate.CopyUnpartitionedTable, UpdateData: true, UpdateMetadata: true,
		SrcPath: "s3://a/d/t", DestPath: "s3://b/d/t",
	}, catalog.NewTableSpec("d", "t"))
	line, err := in.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	out, err := Parse(line + "\n")
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("got %+v want %+v", out, in)
	}
}

func TestMarshalRejectsSeparators(t *testing.T) {
	_, err := New(estimate.NoOpEstimate(), catalog.NewTableSpec("d", "bad\tname")).Marshal()
	if !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"no-op\t\t\tfalse\tfalse\td\tt\t",          // 8 fields
		"nope\t\t\tfalse\tfalse\td\tt\t\t",         // unknown action
		"no-op\t\t\tmaybe\tfalse\td\tt\t\t",        // bad bool
		"no-op\t\t\tfalse\tfalse\td\tt\t\t\textra", // 10 fields
	} {
		if _, err := Parse(line); err == nil {
			t.Fatalf("Parse(%q) expected error", line)
		}
	}
}

func TestRunPrefix(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	cases := map[string]string{
		"s3://bucket/repl":  "s3://bucket/repl/run=20240301T123000Z",
		"s3://bucket/repl/": "s3://bucket/repl/run=20240301T123000Z",
		"file:///tmp/out":   "file:///tmp/out/run=20240301T123000Z",
		"/var/replication":  "/var/replication/run=20240301T123000Z",
	}
	for in, want := range cases {
		if got := RunPrefix(in, ts); got != want {
			t.Fatalf("RunPrefix(%q)=%q; want %q", in, got, want)
		}
	}
}

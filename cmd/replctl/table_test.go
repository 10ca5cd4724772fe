package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSnapshot(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return "memory://" + p
}

func TestTableCommandPrintsRecords(t *testing.T) {
	src := writeSnapshot(t, "src.json", `{"tables":[{"db":"d","name":"u","location":"s3://src/d/u"}]}`)
	dst := writeSnapshot(t, "dst.json", `{"tables":[]}`)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"table", "d", "u",
		"--src-dsn", src, "--dst-dsn", dst,
		"--src-cluster", "src", "--src-root", "s3://src", "--dst-root", "s3://dst"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("output %q", out.String())
	}
	fields := strings.Split(lines[0], "\t")
	if len(fields) != 9 || fields[0] != "copy-unpartitioned-table" || fields[2] != "s3://dst/d/u" {
		t.Fatalf("record %q", lines[0])
	}
}

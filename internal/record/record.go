// Package record is the line format exchanged between the compare stages
// and read by the commit phase.
//
// A record is one line of nine tab-separated fields:
//
//	action_name src_path dest_path copied_data copied_metadata db_name table_name partition_name extra
//
// Absent paths, partition names and extras are empty fields.
package record

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/catalog-replication/internal/catalog"
	"github.com/yourorg/catalog-replication/internal/estimate"
)

const numFields = 9

// ErrInvalidField is returned when a value cannot be carried in a field.
var ErrInvalidField = errors.New("record: field contains tab or newline")

// Record pairs a TaskEstimate with the object it concerns. Records are
// never modified after creation.
type Record struct {
	Estimate estimate.TaskEstimate
	Spec     catalog.ObjectSpec
}

func New(est estimate.TaskEstimate, spec catalog.ObjectSpec) Record {
	return Record{Estimate: est, Spec: spec}
}

// Marshal renders r as a single line without the trailing newline.
func (r Record) Marshal() (string, error) {
	fields := [numFields]string{
		r.Estimate.Type.String(),
		r.Estimate.SrcPath,
		r.Estimate.DestPath,
		strconv.FormatBool(r.Estimate.UpdateData),
		strconv.FormatBool(r.Estimate.UpdateMetadata),
		r.Spec.DB,
		r.Spec.Table,
		r.Spec.Partition,
		r.Estimate.Extra,
	}
	for i, f := range fields {
		if strings.ContainsAny(f, "\t\r\n") {
			return "", fmt.Errorf("%w: field %d of %s", ErrInvalidField, i, r.Spec)
		}
	}
	return strings.Join(fields[:], "\t"), nil
}

// Parse is the inverse of Marshal. A trailing newline is ignored.
func Parse(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	f := strings.Split(line, "\t")
	if len(f) != numFields {
		return Record{}, fmt.Errorf("record: want %d fields, got %d", numFields, len(f))
	}
	tt, err := estimate.ParseTaskType(f[0])
	if err != nil {
		return Record{}, fmt.Errorf("record: %w", err)
	}
	data, err := strconv.ParseBool(f[3])
	if err != nil {
		return Record{}, fmt.Errorf("record: copied_data: %w", err)
	}
	meta, err := strconv.ParseBool(f[4])
	if err != nil {
		return Record{}, fmt.Errorf("record: copied_metadata: %w", err)
	}
	return Record{
		Estimate: estimate.TaskEstimate{
			Type:           tt,
			SrcPath:        f[1],
			DestPath:       f[2],
			UpdateData:     data,
			UpdateMetadata: meta,
			Extra:          f[8],
		},
		Spec: catalog.NewPartitionSpec(f[5], f[6], f[7]),
	}, nil
}

// RunKeyLayout formats the run timestamp that groups one run's records.
const RunKeyLayout = "20060102T150405Z"

// RunPrefix returns the output prefix for the run started at ts, e.g.
// s3://bucket/replication/run=20240101T000000Z.
func RunPrefix(outputURI string, ts time.Time) string {
	key := "run=" + ts.UTC().Format(RunKeyLayout)
	if i := strings.Index(outputURI, "://"); i >= 0 {
		scheme, rest := outputURI[:i+3], outputURI[i+3:]
		return scheme + path.Join(rest, key)
	}
	return path.Join(outputURI, key)
}

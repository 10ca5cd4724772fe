package types

import "time"

// ReplicationParams is the input of ReplicationWorkflow.
type ReplicationParams struct {
	OutputURI string `json:"output_uri"` // file:// or s3:// prefix; records land under run=<ts>/
	Shards    int    `json:"shards"`     // table-listing shards (map stage width)
	Buckets   int    `json:"buckets"`    // partition buckets (reduce stage width)
	// Optional relative subdirectory under the scratch root for this run's
	// intermediate files. Defaults to the workflow ID.
	ScratchSubdir string `json:"scratch_subdir,omitempty"`
	// If true, the scratch subdir is left in place after completion/failure.
	KeepScratch bool `json:"keep_scratch"`
	// Names the run prefix. Zero means the workflow start time.
	RunTime time.Time `json:"run_time,omitempty"`
}

type ListParams struct {
	Shards        int
	ScratchSubdir string
}

type ListResult struct {
	ShardURIs []string
	Tables    uint64
}

// CompareTablesParams drives the map stage for one shard of table identities.
type CompareTablesParams struct {
	Shard         int
	ShardURI      string
	Buckets       int
	ScratchSubdir string
}

type CompareTablesResult struct {
	TablesURI    string   // sorted table-level records
	CheckURIs    []string // check-partition records, indexed by bucket
	Tables       uint64
	Blocklisted  uint64
	Placeholders uint64
}

// ComparePartitionsParams drives the reduce stage for one partition bucket.
type ComparePartitionsParams struct {
	Bucket        int
	CheckURIs     []string // this bucket's file from every shard
	ScratchSubdir string
}

type ComparePartitionsResult struct {
	OutputURI    string // sorted resolved partition records
	Placeholders uint64
	Unique       uint64
	Counts       map[string]uint64
}

type MergeParams struct {
	SortedURIs   []string
	OutURI       string // results.tsv
	ManifestURI  string // manifest.json
	Params       ReplicationParams
	Tables       uint64
	Placeholders uint64
}

type MergeStats struct {
	Emitted uint64
	Counts  map[string]uint64
}

// ReplicationResult is the output of ReplicationWorkflow.
type ReplicationResult struct {
	ResultsURI  string            `json:"results_uri"`
	ManifestURI string            `json:"manifest_uri"`
	Tables      uint64            `json:"tables"`
	Records     uint64            `json:"records"`
	Counts      map[string]uint64 `json:"counts"`
}

// CleanupParams instructs the cleanup activity which subdir to remove.
type CleanupParams struct {
	ScratchSubdir string
}

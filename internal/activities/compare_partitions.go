package activities

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/catalog"
	iopkg "github.com/yourorg/catalog-replication/internal/iopkg"
	replmetrics "github.com/yourorg/catalog-replication/internal/metrics"
	"github.com/yourorg/catalog-replication/internal/record"
	"github.com/yourorg/catalog-replication/internal/types"
)

// Key prefixes in the bucket's scratch badger DB.
const (
	prefixPending  byte = 'p' // db \t table \t partition
	prefixResolved byte = 'r' // marshalled record line
)

// ComparePartitions is the reduce stage. It collects one bucket's
// check-partition placeholders from every shard, collapses duplicates,
// resolves each partition with the estimator and writes the resolved
// records sorted.
func (a *Activities) ComparePartitions(ctx context.Context, p types.ComparePartitionsParams) (types.ComparePartitionsResult, error) {
	dbpath := a.scratchPath(p.ScratchSubdir, fmt.Sprintf("badger/bucket-%02d", p.Bucket))
	// A retried attempt starts from an empty set.
	if err := os.RemoveAll(dbpath); err != nil {
		return types.ComparePartitionsResult{}, err
	}
	opts := badger.DefaultOptions(dbpath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return types.ComparePartitionsResult{}, err
	}
	defer db.Close()

	res := types.ComparePartitionsResult{Counts: make(map[string]uint64)}
	lastHB := time.Now()
	for _, uri := range p.CheckURIs {
		n, err := loadPlaceholders(ctx, db, uri)
		if err != nil {
			return types.ComparePartitionsResult{}, fmt.Errorf("load %s: %w", uri, err)
		}
		res.Placeholders += n
		if time.Since(lastHB) > 10*time.Second {
			activity.RecordHeartbeat(ctx, map[string]any{"placeholders": res.Placeholders})
			lastHB = time.Now()
		}
	}

	src, dst, err := a.dial(ctx)
	if err != nil {
		return types.ComparePartitionsResult{}, err
	}
	defer func() {
		if err := closeBoth(src, dst); err != nil {
			a.log.Warn("close catalogs", zap.Error(err))
		}
	}()
	est := a.estimator(src, dst)

	wb := db.NewWriteBatch()
	defer wb.Cancel()
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte{prefixPending}})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key()[1:])
			parts := strings.SplitN(key, "\t", 3)
			if len(parts) != 3 {
				return fmt.Errorf("corrupt placeholder key %q", key)
			}
			spec := catalog.NewPartitionSpec(parts[0], parts[1], parts[2])
			e, err := est.Analyze(ctx, spec)
			if err != nil {
				return err
			}
			line, err := record.New(e, spec).Marshal()
			if err != nil {
				return err
			}
			if err := wb.Set(append([]byte{prefixResolved}, line...), []byte{1}); err != nil {
				return err
			}
			res.Unique++
			res.Counts[e.Type.String()]++
			replmetrics.PartitionsResolved.WithLabelValues(e.Type.String()).Inc()
			if res.Unique%1000 == 0 || time.Since(lastHB) > 10*time.Second {
				activity.RecordHeartbeat(ctx, map[string]any{"placeholders": res.Placeholders, "resolved": res.Unique})
				lastHB = time.Now()
			}
		}
		return nil
	})
	if err != nil {
		return types.ComparePartitionsResult{}, err
	}
	if err := wb.Flush(); err != nil {
		return types.ComparePartitionsResult{}, err
	}

	path := a.scratchPath(p.ScratchSubdir, fmt.Sprintf("partitions/partitions-%02d.tsv", p.Bucket))
	out, closeOut, err := iopkg.Create(path)
	if err != nil {
		return types.ComparePartitionsResult{}, err
	}
	defer closeOut.Close()
	bw := bufio.NewWriterSize(out, 1<<20)
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte{prefixResolved}})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if _, err := bw.Write(it.Item().Key()[1:]); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.ComparePartitionsResult{}, err
	}
	if err := bw.Flush(); err != nil {
		return types.ComparePartitionsResult{}, err
	}
	if err := closeOut.Close(); err != nil {
		return types.ComparePartitionsResult{}, err
	}
	res.OutputURI = "file://" + path

	a.log.Info("compared partitions",
		zap.Int("bucket", p.Bucket),
		zap.Uint64("placeholders", res.Placeholders),
		zap.Uint64("unique", res.Unique))
	return res, nil
}

// loadPlaceholders adds the partition identities of a check file to db and
// returns how many lines it read.
func loadPlaceholders(ctx context.Context, db *badger.DB, uri string) (uint64, error) {
	in, err := iopkg.OpenReader(ctx, uri)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	wb := db.NewWriteBatch()
	defer wb.Cancel()
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 1024), 1024*1024)
	var n uint64
	for sc.Scan() {
		if sc.Text() == "" {
			continue
		}
		r, err := record.Parse(sc.Text())
		if err != nil {
			return n, err
		}
		key := append([]byte{prefixPending}, r.Spec.DB+"\t"+r.Spec.Table+"\t"+r.Spec.Partition...)
		if err := wb.Set(key, []byte{1}); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, err
	}
	return n, wb.Flush()
}

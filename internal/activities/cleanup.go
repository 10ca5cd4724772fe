package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/types"
)

// CleanupScratch removes the run's scratch subdirectory (shard lists, check
// files, badger DBs, sorted outputs). Missing directories are not an error.
func (a *Activities) CleanupScratch(ctx context.Context, p types.CleanupParams) error {
	sub := filepath.Clean(p.ScratchSubdir)
	if sub == "." || sub == "" || sub == "/" || sub == ".." || filepath.IsAbs(sub) || strings.HasPrefix(sub, "../") {
		// Never remove the scratch root itself or anything above it.
		return errors.New("invalid scratch subdir for cleanup")
	}
	base := filepath.Join(a.cfg.ScratchDir, sub)
	if err := os.RemoveAll(base); err != nil {
		return err
	}
	a.log.Debug("removed scratch", zap.String("dir", base))
	return nil
}

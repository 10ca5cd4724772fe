package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/activities"
	"github.com/yourorg/catalog-replication/internal/blocklist"
	"github.com/yourorg/catalog-replication/internal/copytask"
)

var (
	cfgFile string
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "replctl",
	Short: "Compare and replicate table catalogs between two clusters",
	Long: `replctl compares the table catalog of a source cluster against a
destination cluster. It can inspect a single table locally or start a full
replication run on the Temporal worker fleet.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./replctl.yaml)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("src-dsn", "", "source catalog DSN (postgres:// or memory://)")
	pf.String("dst-dsn", "", "destination catalog DSN (postgres:// or memory://)")
	pf.String("src-cluster", "source", "source cluster name")
	pf.String("dst-cluster", "destination", "destination cluster name")
	pf.String("src-root", "", "source warehouse root")
	pf.String("dst-root", "", "destination warehouse root")
	pf.String("blocklist", "", "comma-separated db:table regex rules to skip")
	pf.String("conflict-policy", "overwrite", "pre-copy conflict policy: overwrite, fail")

	for key, flag := range map[string]string{
		"log_level":       "log-level",
		"src_dsn":         "src-dsn",
		"dst_dsn":         "dst-dsn",
		"src_cluster":     "src-cluster",
		"dst_cluster":     "dst-cluster",
		"src_root":        "src-root",
		"dst_root":        "dst-root",
		"blocklist":       "blocklist",
		"conflict_policy": "conflict-policy",
	} {
		mustBindPFlag(key, pf.Lookup(flag))
	}

	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(startCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("replctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("REPL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
		}
	}
}

func setupLogger() error {
	cfg := zap.NewDevelopmentConfig()
	if err := cfg.Level.UnmarshalText([]byte(strings.ToLower(viper.GetString("log_level")))); err != nil {
		return fmt.Errorf("unknown log level: %q (expected debug, info, warn, error)", viper.GetString("log_level"))
	}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// newActivities builds the activity set from flags, environment and config
// file, the same way the worker does from its environment.
func newActivities(scratch string) (*activities.Activities, error) {
	filter, err := blocklist.Parse(viper.GetString("blocklist"))
	if err != nil {
		return nil, fmt.Errorf("blocklist: %w", err)
	}
	var conflict copytask.ConflictPolicy
	switch strings.ToLower(viper.GetString("conflict_policy")) {
	case "", "overwrite":
		conflict = copytask.ConflictOverwrite
	case "fail":
		conflict = copytask.ConflictFail
	default:
		return nil, fmt.Errorf("unknown conflict policy %q (expected overwrite, fail)", viper.GetString("conflict_policy"))
	}
	if viper.GetString("src_dsn") == "" || viper.GetString("dst_dsn") == "" {
		return nil, errors.New("both --src-dsn and --dst-dsn are required")
	}
	return activities.New(activities.Config{
		ScratchDir: scratch,
		Src: activities.Cluster{
			Name:   viper.GetString("src_cluster"),
			DSN:    viper.GetString("src_dsn"),
			FSRoot: viper.GetString("src_root"),
		},
		Dst: activities.Cluster{
			Name:   viper.GetString("dst_cluster"),
			DSN:    viper.GetString("dst_dsn"),
			FSRoot: viper.GetString("dst_root"),
		},
		Filter:   filter,
		Dial:     activities.CatalogDialer(),
		Conflict: conflict,
		Log:      logger,
	}), nil
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("viper.BindPFlag(%q): %v", key, err))
	}
}

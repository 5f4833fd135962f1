package cli

import (
	"fmt"
	"os"

	"github.com/LeJamon/goUnitrie/internal/config"
	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/LeJamon/goUnitrie/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configFile string
	debug      bool

	// Set up by the root pre-run hook for every subcommand
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "unitrie",
	Short: "unitrie - binary state trie inspection tool",
	Long: `unitrie inspects and maintains the node stores of a binary,
path-compressed state trie: roots, keys, values, account records,
store-to-store copies and record verification.`,
	Version:           "0.1.0-dev",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if trie.IsFatal(err) {
			// The store holds data this build cannot trust.
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable normally suppressed debug logging")
}

// initConfig loads the configuration file and UNITRIE_ environment
// variables, then builds the logger.
func initConfig(cmd *cobra.Command, args []string) error {
	var (
		c   *config.Config
		err error
	)
	if configFile != "" {
		c, err = config.LoadConfig(config.ConfigPaths{Main: configFile})
	} else {
		c, err = config.LoadDefaultConfig()
	}
	if err != nil {
		return err
	}
	l, _, err := logging.New(c.Log, debug)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	logger.Debug("configuration loaded",
		zap.String("path", c.GetConfigPath()),
		zap.String("backend", c.Store.Backend),
		zap.String("codec", c.Store.Codec),
		zap.Bool("secure", c.Trie.Secure))
	return nil
}

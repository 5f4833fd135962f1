package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/LeJamon/goUnitrie/internal/storage/nodestore"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display version information for unitrie including the node formats it reads and writes.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "unitrie version %s\n", rootCmd.Version)
		fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "Node codecs: %s, %s\n", trie.CanonicalCodec.Name(), trie.LegacyCodec.Name())
		fmt.Fprintf(out, "Store backends: %s\n", strings.Join(nodestore.AvailableBackends(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

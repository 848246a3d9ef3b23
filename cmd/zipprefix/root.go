package main

import "github.com/spf13/cobra"

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

func buildRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "zipprefix",
		Version: version,
		Short:   "Rewrite a ZIP archive's structural offsets after a prefix is prepended",
		Long: `zipprefix keeps a ZIP archive readable after arbitrary bytes are
prepended to it (the self-extracting-archive trick): every local file
header offset, central directory offset, and ZIP64 extra field the
format records gets shifted to match the new physical layout.

Commands:
  validate   Checks that a ZIP archive's offsets are internally consistent
  adjust     Shifts every offset by a signed displacement
  prefix     Prepends bytes or files to an archive and fixes its offsets

Examples:
  zipprefix validate archive.zip
  zipprefix adjust --displacement 512 archive.zip
  zipprefix prefix --file stub.sh archive.zip`,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print what changed")

	return cmd
}

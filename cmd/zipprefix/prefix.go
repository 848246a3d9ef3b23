package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-zipper/zipprefix/pkg/prefixer"
)

func buildPrefixCommand() *cobra.Command {
	var byteStrings []string
	var filePaths []string

	cmd := &cobra.Command{
		Use:   "prefix <archive.zip>",
		Short: "Prepend bytes or files to a ZIP archive and repair its offsets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			var sources []prefixer.Source
			for _, s := range byteStrings {
				sources = append(sources, prefixer.Bytes(s))
			}
			for _, f := range filePaths {
				sources = append(sources, prefixer.FilePath(f))
			}
			if len(sources) == 0 {
				return fmt.Errorf("prefix requires at least one --bytes or --file")
			}

			if err := prefixer.ApplyPrefixes(context.Background(), path, sources); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if verbose {
				fmt.Printf("%s: prepended %d source(s)\n", path, len(sources))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&byteStrings, "bytes", nil, "Literal bytes to prepend (repeatable, applied in order)")
	cmd.Flags().StringArrayVar(&filePaths, "file", nil, "File whose contents to prepend (repeatable, applied in order after --bytes)")

	return cmd
}

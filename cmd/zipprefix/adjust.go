package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-zipper/zipprefix/pkg/zipoffset"
)

func buildAdjustCommand() *cobra.Command {
	var displacement int64

	cmd := &cobra.Command{
		Use:   "adjust <archive.zip>",
		Short: "Shift every structural offset in a ZIP archive by a signed displacement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := zipoffset.AdjustOffsets(path, displacement); err != nil {
				var zerr *zipoffset.Error
				if errors.As(err, &zerr) {
					return fmt.Errorf("%s: %s", path, zerr.Msg)
				}
				return fmt.Errorf("%s: %w", path, err)
			}
			if verbose {
				fmt.Printf("%s: offsets shifted by %d bytes\n", path, displacement)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&displacement, "displacement", 0, "Signed byte displacement to apply to every offset")

	return cmd
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-zipper/zipprefix/pkg/zipoffset"
)

func buildValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <archive.zip>",
		Short: "Check that a ZIP archive's structural offsets are internally consistent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := zipoffset.ValidateOffsets(path); err != nil {
				var zerr *zipoffset.Error
				if errors.As(err, &zerr) {
					return fmt.Errorf("%s: %s", path, zerr.Msg)
				}
				return fmt.Errorf("%s: %w", path, err)
			}
			if verbose {
				fmt.Printf("%s: offsets are consistent\n", path)
			}
			return nil
		},
	}
}

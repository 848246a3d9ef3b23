package main

import "os"

func main() {
	rootCmd := buildRootCommand()
	rootCmd.AddCommand(buildValidateCommand())
	rootCmd.AddCommand(buildAdjustCommand())
	rootCmd.AddCommand(buildPrefixCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

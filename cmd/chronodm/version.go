package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the chronodm version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chronodm v%s\n", version)
	},
}

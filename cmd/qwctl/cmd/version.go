package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brisk-orange-fox/querywatch/pkg/config"
)

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.VersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

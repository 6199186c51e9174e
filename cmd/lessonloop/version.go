package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lessonloop/lessonloop"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of lessonloop",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lessonloop version %s\n", strings.TrimSpace(lessonloop.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lessonloop",
	Short: "Lessonloop is a gamified language-lesson dialogue engine",
	Long:  `Lessonloop plays interactive language lessons described by JSON scripts: vocabulary, grammar drills, sentence construction, error hunting and roleplay situations.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("script", "s", "lesson.json", "Path to the lesson script")
}

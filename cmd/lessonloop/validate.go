package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lessonloop/lessonloop/pkg/script"
)

var validateCmd = &cobra.Command{
	Use:   "validate [script]",
	Short: "Check a lesson script for consistency",
	Long:  `Parses the lesson script and reports every structural problem: missing modules, malformed tasks, scenarios without steps.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		scriptPath, _ := cmd.Flags().GetString("script")
		if !cmd.Flags().Changed("script") && len(args) > 0 {
			scriptPath = args[0]
		}

		lesson, err := script.Load(scriptPath)
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		if err := script.Validate(lesson); err != nil {
			fmt.Println("Validation failed:")
			for _, problem := range script.ValidationErrors(err) {
				fmt.Printf("  - %v\n", problem)
			}
			os.Exit(1)
		}
		fmt.Println("Script is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

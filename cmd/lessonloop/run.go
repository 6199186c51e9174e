package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lessonloop/lessonloop/internal/cli"
)

// runCmd plays a lesson interactively at the terminal.
var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Play a lesson interactively",
	Long:  `Runs a lesson script at the terminal. Progress lives in memory for the duration of the session; use 'serve' for persistent multi-user sessions.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		scriptPath, _ := cmd.Flags().GetString("script")
		if !cmd.Flags().Changed("script") && len(args) > 0 {
			scriptPath = args[0]
		}
		user, _ := cmd.Flags().GetString("user")
		oracleURL, _ := cmd.Flags().GetString("oracle-url")
		uiLang, _ := cmd.Flags().GetString("ui-lang")
		delay, _ := cmd.Flags().GetDuration("reveal-delay")
		restart, _ := cmd.Flags().GetBool("restart")
		debug, _ := cmd.Flags().GetBool("debug")

		err := cli.RunLesson(cli.RunOptions{
			ScriptPath:  scriptPath,
			UserID:      user,
			LessonID:    scriptPath,
			OracleURL:   oracleURL,
			UILang:      uiLang,
			RevealDelay: delay,
			Restart:     restart,
			Debug:       debug,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("user", "local", "Learner identifier")
	runCmd.Flags().String("oracle-url", "", "Answer-checking service URL (empty: grade from the script)")
	runCmd.Flags().String("ui-lang", "ru", "Interface language hint for the oracle")
	runCmd.Flags().Duration("reveal-delay", 400*time.Millisecond, "Pause between revealed messages")
	runCmd.Flags().Bool("restart", false, "Discard saved progress before starting")
	runCmd.Flags().Bool("debug", false, "Verbose logging to stderr")

	rootCmd.Run = runCmd.Run
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/observability"
)

var (
	inputFile  string
	outputFile string
	language   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "voicetutor",
	Short: "Voice tutor speech tools",
	Long: `Command line access to the voice tutor's speech pipeline.

Commands:
  speak       - speak text through the backend, Cartesia and local synthesis tiers
  transcribe  - transcribe a WAV recording through the tutor API
  voices      - list local synthesis voices and the one picked for a language`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		observability.InitLogger(level, true)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&language, "lang", "l", "", "language code (default from DEFAULT_LANGUAGE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(speakCmd, transcribeCmd, voicesCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = cfg.DefaultLanguage
	}
	return cfg, nil
}

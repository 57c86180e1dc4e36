package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voicetutor/internal/app"
	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/playback"
	"github.com/lexiqai/voicetutor/internal/tts"
)

var localOnly bool

var speakCmd = &cobra.Command{
	Use:   "speak [text]",
	Short: "Speak text through the fallback chain",
	Long: `Render text with the first tier that succeeds and play it.

Without -o the clip is piped to PLAYER_COMMAND. With -o it is written to that path.

Example request file (speak.yaml):
  text: Good morning, how are you?
  language_code: en-IN
  rate: 0.9
  prefer_backend: true`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		req, err := buildSpeechRequest(cfg, args)
		if err != nil {
			return err
		}
		if localOnly {
			req.PreferBackend = false
		}

		var sink playback.Sink
		if outputFile != "" {
			sink = playback.NewFileSinkPath(outputFile)
		} else {
			cmdSink, err := playback.NewCommandSink(cfg.PlayerCommand)
			if err != nil {
				return err
			}
			if !cmdSink.Available() {
				return fmt.Errorf("player %q not found, use -o to write a file instead", cfg.PlayerCommand)
			}
			sink = cmdSink
		}

		components := app.Build(cfg)
		speaker := tts.NewOrchestrator(playback.NewController(sink), components.Strategies...)

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		result, err := speaker.Speak(ctx, req)
		if err != nil {
			var synthErr *tts.SynthesisError
			if errors.As(err, &synthErr) {
				return fmt.Errorf("%s: %w", synthErr.Kind, err)
			}
			return err
		}

		select {
		case <-result.Done:
		case <-ctx.Done():
			speaker.StopSpeaking()
			return ctx.Err()
		}

		fmt.Fprintf(cmd.OutOrStdout(), "spoke via %s", result.Tier)
		if result.Degraded {
			fmt.Fprintf(cmd.OutOrStdout(), " (%d tier(s) failed)", len(result.Attempts))
		}
		if outputFile != "" {
			fmt.Fprintf(cmd.OutOrStdout(), ", wrote %s", outputFile)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	speakCmd.Flags().StringVarP(&inputFile, "file", "f", "", "request file (YAML or JSON)")
	speakCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write the clip to this path instead of playing it")
	speakCmd.Flags().BoolVar(&localOnly, "local", false, "skip backend tiers")
}

func buildSpeechRequest(cfg *config.Config, args []string) (tts.SpeechRequest, error) {
	req := tts.NewSpeechRequest(cfg, "", language)
	if inputFile != "" {
		if err := loadRequest(inputFile, &req); err != nil {
			return req, err
		}
	}
	if len(args) > 0 {
		req.Text = args[0]
	}
	if strings.TrimSpace(req.Text) == "" {
		return req, fmt.Errorf("nothing to speak: pass text or use -f")
	}
	return req, nil
}

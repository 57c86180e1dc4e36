package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voicetutor/internal/audio"
	"github.com/lexiqai/voicetutor/internal/tutorapi"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file.wav>",
	Short: "Transcribe a WAV recording through the tutor API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		if !audio.ValidatePayload(data) || audio.DetectFormat(data) != audio.FormatWAV {
			return fmt.Errorf("%s is not a WAV recording", args[0])
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		client := tutorapi.NewClient(cfg)
		resp, err := client.SpeechToText(ctx, data, filepath.Base(args[0]))
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

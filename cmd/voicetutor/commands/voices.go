package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voicetutor/internal/synthesis"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List local synthesis voices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		engine := synthesis.NewEspeakEngine(cfg.SynthCommand)
		if !engine.Supported() {
			return fmt.Errorf("%s: %w", cfg.SynthCommand, synthesis.ErrUnsupported)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		voices, err := engine.Voices(ctx)
		if err != nil {
			return err
		}
		selected := synthesis.SelectVoice(voices, language)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tLOCALE\tNAME")
		for _, v := range voices {
			mark := ""
			if selected != nil && v.ID == selected.ID {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, v.ID, v.Locale, v.Name)
		}
		return w.Flush()
	},
}

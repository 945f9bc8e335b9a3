package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"ielts-practice-engine/internal/playback"
	"ielts-practice-engine/internal/transcript"
)

// NewTranscriptCmd parses a caption track and prints its cues as JSON.
func NewTranscriptCmd() *cobra.Command {
	var at float64
	cmd := &cobra.Command{
		Use:   "transcript [file]",
		Short: "Parse a WebVTT caption track (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			cues := transcript.Parse(string(raw))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if !cmd.Flags().Changed("at") {
				return enc.Encode(cues)
			}

			idx := playback.ResolveActiveCue(cues, at)
			if idx < 0 {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "no cue active at %.3fs\n", at)
				return err
			}
			return enc.Encode(map[string]any{"index": idx, "cue": cues[idx]})
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "print only the cue active at this time in seconds")
	return cmd
}

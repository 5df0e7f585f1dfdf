package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/boxrelay/boxrelay/color"
	"github.com/boxrelay/boxrelay/icon"
	"github.com/boxrelay/boxrelay/resolver"
	"github.com/boxrelay/boxrelay/server"
	"github.com/boxrelay/boxrelay/style"
	"github.com/boxrelay/boxrelay/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringP("detail-path", "p", "", "Known detail path of the title, skips the detail lookup")
	resolveCmd.Flags().StringP("title", "t", "", "Title used in proxy file names")
	resolveCmd.Flags().BoolP("json", "j", false, "Print the response payload as JSON")

	resolveCmd.SetOut(os.Stdout)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Resolve a title to its available stream qualities",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		a, err := newApp(ctx)
		handleErr(err)
		defer a.Close()

		title := resolver.Title{
			ID:         args[0],
			DetailPath: lo.Must(cmd.Flags().GetString("detail-path")),
			Title:      lo.Must(cmd.Flags().GetString("title")),
		}

		result, err := a.streams.Resolve(ctx, title)
		handleErr(err)

		qualities := server.Qualities(result.Qualities, title.Title)

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(server.StreamResponse{
				Success:   true,
				Qualities: qualities,
				Cached:    result.Cached,
				TimingMs:  result.Elapsed.Milliseconds(),
			}))
			return
		}

		if len(qualities) == 0 {
			cmd.Printf("%s no qualities for %s\n", style.Fg(color.Yellow)(icon.Get(icon.Fail)), title.ID)
			return
		}

		cmd.Printf(
			"%s %s for %s %s\n",
			style.Fg(color.Green)(icon.Get(icon.Success)),
			util.Quantify(len(qualities), "quality", "qualities"),
			style.Fg(color.Purple)(title.ID),
			style.Faint(durationLabel(result.Elapsed)),
		)
		for _, q := range qualities {
			cmd.Printf(
				"  %s  %s  %s\n",
				style.Quality(q.Quality)(fmt.Sprintf("%6s", q.Label)),
				style.Fg(color.Gray)(fmt.Sprintf("%8.1f MB", q.SizeMB)),
				q.ProxyURL,
			)
		}
	},
}

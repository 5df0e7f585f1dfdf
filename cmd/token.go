package cmd

import (
	"os"

	"github.com/boxrelay/boxrelay/color"
	"github.com/boxrelay/boxrelay/style"
	"github.com/boxrelay/boxrelay/token"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenEncodeCmd)
	tokenCmd.AddCommand(tokenDecodeCmd)

	tokenEncodeCmd.SetOut(os.Stdout)
	tokenDecodeCmd.SetOut(os.Stdout)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Encode and decode stream tokens",
}

var tokenEncodeCmd = &cobra.Command{
	Use:   "encode <url> [referer]",
	Short: "Pack an upstream URL and its referer into a stream token",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		var referer string
		if len(args) == 2 {
			referer = args[1]
		}
		cmd.Println(token.Encode(args[0], referer))
	},
}

var tokenDecodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Show the upstream URL and referer behind a stream token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		upstream, referer, err := token.Decode(args[0])
		handleErr(err)

		label := style.New().Bold(true).Foreground(color.HiPurple).Render
		cmd.Printf("%s %s\n", label("URL:    "), upstream)
		cmd.Printf("%s %s\n", label("Referer:"), style.Fg(color.Yellow)(referer))
	},
}

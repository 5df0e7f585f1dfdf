package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/boxrelay/boxrelay/config"
	"github.com/boxrelay/boxrelay/key"
	"github.com/boxrelay/boxrelay/log"
	"github.com/boxrelay/boxrelay/server"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "Address to listen on")
	lo.Must0(viper.BindPFlag(key.ServerAddress, serveCmd.Flags().Lookup("address")))

	serveCmd.Flags().Bool("insecure", false, "Skip certificate verification on upstream connections")
	lo.Must0(viper.BindPFlag(key.ProxyInsecureTLS, serveCmd.Flags().Lookup("insecure")))

	serveCmd.Flags().Bool("warm", true, "Visit the backend on startup to obtain session cookies")
	lo.Must0(viper.BindPFlag(key.SessionWarm, serveCmd.Flags().Lookup("warm")))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long:  "Serve quality lists, browse listings, and proxied streams until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		handleErr(err)
		defer a.Close()

		srv := server.New(a.streams, a.browse, a.proxy)
		addr := viper.GetString(key.ServerAddress)

		log.Infof("serving %s on %s", viper.GetString(key.BackendHost), addr)
		handleErr(srv.ListenAndServe(ctx, addr, config.Seconds(key.ServerShutdownTimeout)))
	},
}

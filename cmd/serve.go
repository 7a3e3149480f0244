package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/mem0-go/pkg/service"
)

var (
	addrFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve memory-augmented generation over HTTP",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := newGateway(false)
			if err != nil {
				return err
			}

			if gateway == nil {
				log.Warn("memory is disabled, serving plain generation")
			}

			srv := service.NewServer(service.Config{
				Addr:      viper.GetString("server.addr"),
				Provider:  viper.GetString("provider.name"),
				Model:     viper.GetString("provider.model"),
				Heartbeat: viper.GetDuration("server.heartbeat"),
				Options:   orchestratorOptions(),
			}, newAdapter, gateway)

			go func() {
				quit := make(chan os.Signal, 1)
				signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
				<-quit

				log.Info("shutting down")

				if err := srv.Shutdown(); err != nil {
					log.Error("shutdown failed", "error", err)
				}
			}()

			return srv.Start()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&addrFlag, "addr", "a", ":3210", "Address to listen on")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

var longServe = `
Serve the HTTP API.

Routes:
  GET  /health               liveness
  GET  /metrics              generation and memory counters
  POST /v1/generate          one-shot generation
  POST /v1/stream            generation as Server-Sent Events
  POST /v1/memories/search   memory search

Examples:
  mem0-go serve --addr :8080
`

/*
Package cmd implements the mem0-go command line: one-shot and streaming
generation with memory, direct memory management, and the HTTP service.
*/
package cmd

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/mem0-go/pkg/logging"
	"github.com/theapemachine/mem0-go/pkg/telemetry"
)

/*
Embed a mini filesystem into the binary to hold the default config file.
This will be written to the home directory of the user running the service,
which allows a developer to easily override the config file.
*/
//go:embed cfg/*
var embedded embed.FS

var (
	projectName = "mem0-go"
	cfgFile     string
	logLevel    string
	mem0APIKey  string

	shutdownTelemetry = func(context.Context) error { return nil }

	rootCmd = &cobra.Command{
		Use:   "mem0-go",
		Short: "Memory-augmented generation across LLM vendors",
		Long:  longRoot,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			shutdownTelemetry, err = telemetry.Setup(cmd.Context(), telemetry.Config{
				Exporter:    viper.GetString("telemetry.exporter"),
				Endpoint:    viper.GetString("telemetry.endpoint"),
				Insecure:    viper.GetBool("telemetry.insecure"),
				ServiceName: viper.GetString("telemetry.service_name"),
			})

			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			defer logging.Close()

			return shutdownTelemetry(ctx)
		},
	}
)

/*
Execute is the main entry point for the CLI.
*/
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yml",
		"config file (default is $HOME/."+projectName+"/config.yml)",
	)

	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "debug, info, warn or error",
	)

	rootCmd.PersistentFlags().StringVar(
		&mem0APIKey, "mem0-api-key", "", "API key for the memory service (falls back to MEM0_API_KEY)",
	)

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("memory.api_key", rootCmd.PersistentFlags().Lookup("mem0-api-key"))
}

/*
initConfig loads .env, writes the default config on first run, reads it back
and sets up logging. Environment variables prefixed MEM0GO_ override the
file, flags override both.
*/
func initConfig() {
	var err error

	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("failed to load .env", "error", err)
	}

	if err = writeConfig(); err != nil {
		log.Fatal("config", "error", err)
	}

	viper.SetConfigName(strings.TrimSuffix(cfgFile, ".yml"))
	viper.SetConfigType("yml")
	home, _ := os.UserHomeDir()
	viper.AddConfigPath(home + "/." + projectName)

	viper.SetEnvPrefix("MEM0GO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		log.Fatal("config", "error", err)
	}

	if err = logging.Setup(logging.Config{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
		File:   viper.GetString("log.file"),
		Caller: viper.GetBool("log.caller"),
	}); err != nil {
		log.Fatal("logging", "error", err)
	}
}

/*
writeConfig writes the default config file to the user's home directory.
*/
func writeConfig() (err error) {
	var (
		home, _ = os.UserHomeDir()
		fh      fs.File
		buf     bytes.Buffer
	)

	configDir := home + "/." + projectName

	if !CheckFileExists(configDir) {
		if err = os.MkdirAll(configDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	fullPath := configDir + "/" + cfgFile

	if CheckFileExists(fullPath) {
		return nil
	}

	if fh, err = embedded.Open("cfg/config.yml"); err != nil {
		return fmt.Errorf("failed to open embedded config file: %w", err)
	}

	defer fh.Close()

	if _, err = io.Copy(&buf, fh); err != nil {
		return fmt.Errorf("failed to read embedded config file: %w", err)
	}

	if err = os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info("wrote config file", "path", fullPath)

	return nil
}

func CheckFileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !errors.Is(err, os.ErrNotExist)
}

var longRoot = `
mem0-go puts a long-term memory in front of any supported LLM vendor.
Relevant memories are retrieved before each call, injected into the system
prompt, and the new turn is written back afterwards.
`

package tokenrelay

import (
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tokenrelay/tokenrelay/pkg/browser"
	"github.com/tokenrelay/tokenrelay/pkg/config"
	"github.com/tokenrelay/tokenrelay/pkg/flow"
	"github.com/tokenrelay/tokenrelay/pkg/server"
)

func NewServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tokenrelay api server.",
		Long:  "Start the tokenrelay api server.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server config: %w", err)
			}
			return serve(cmd, &cfg)
		},
	}

	serveCmd.Long += "\n\nEnvironment Variables:\n\n" + generateEnvHelpText(config.ServerConfig{}, "")

	return serveCmd
}

func serve(cmd *cobra.Command, cfg *config.ServerConfig) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	browsers := browser.New(cfg)
	engine := flow.NewEngine(cfg, browsers)

	apiServer, err := server.NewServer(cfg, engine)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("host", cfg.WebServer.Host).
		Int("port", cfg.WebServer.Port).
		Msg("tokenrelay server listening")

	return apiServer.ListenAndServe(ctx)
}

func generateEnvHelpText(cfg interface{}, prefix string) string {
	var helpTextBuilder strings.Builder

	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldType := field.Type
		if fieldType.Kind() == reflect.Struct {
			helpTextBuilder.WriteString(fmt.Sprintf("\n%s - %s\n\n", prefix, field.Name))
			helpTextBuilder.WriteString(generateEnvHelpText(reflect.New(fieldType).Elem().Interface(), prefix+" "))
		} else {
			envVar := field.Tag.Get("envconfig")
			description := field.Tag.Get("description")
			defaultValue := field.Tag.Get("default")

			if envVar != "" {
				helpTextBuilder.WriteString(fmt.Sprintf("%s  %s: %s (default: \"%s\")\n", prefix, envVar, description, defaultValue))
			}
		}
	}

	return helpTextBuilder.String()
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
)

var version = "dev"

func newLogger() zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false, TimeFormat: time.RFC3339}
	consoleWriter.TimeFormat = "[" + time.RFC3339 + "]"
	consoleWriter.PartsOrder = []string{
		zerolog.TimestampFieldName,
		zerolog.LevelFieldName,
		zerolog.CallerFieldName,
		zerolog.MessageFieldName,
	}

	logger := zerolog.New(consoleWriter).
		With().Timestamp().Logger()

	level := zerolog.InfoLevel
	envLevel, ok := os.LookupEnv("LOG_LEVEL")
	if ok {
		parsed, err := zerolog.ParseLevel(envLevel)
		if err != nil {
			logger.Warn().Err(err).Msg("could not parse environment variable LOG_LEVEL")
			return logger
		}
		level = parsed
	}

	return logger.Level(level)
}

func main() {
	args := Command{}
	cli := kong.Parse(&args,
		kong.Name("romkeeper"),
		kong.Description("ROM catalog and metadata service"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignals(cancel)

	logger := newLogger()

	var err error
	switch cli.Command() {
	case "version":
		fmt.Println("romkeeper " + version)
		return
	case "sync":
		err = syncCommand(ctx, args, logger)
	case "verify":
		err = verifyCommand(ctx, args, logger)
	case "dat import":
		err = datImportCommand(ctx, args, logger)
	case "dat detect":
		err = datDetectCommand(ctx, args, logger)
	case "enrich":
		err = enrichCommand(ctx, args, logger)
	case "launchbox-import":
		err = launchboxImportCommand(ctx, args, logger)
	case "sources add":
		err = sourcesAddCommand(ctx, args, logger)
	case "sources list":
		err = sourcesListCommand(ctx, args, logger)
	case "sources update":
		err = sourcesUpdateCommand(ctx, args, logger)
	case "sources credentials":
		err = sourcesCredentialsCommand(ctx, args, logger)
	case "sources remove":
		err = sourcesRemoveCommand(ctx, args, logger)
	case "sources test":
		err = sourcesTestCommand(ctx, args, logger)
	case "search":
		err = searchCommand(ctx, args, logger)
	case "daemon":
		err = daemonCommand(ctx, args, logger)
	default:
		panic(cli.Command())
	}

	if err != nil {
		logger.Error().Err(err).Msg(cli.Command() + " error")
		cli.Exit(1)
	}
}

func setupSignals(onSignal func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		onSignal()
	}()
}

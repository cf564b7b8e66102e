package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cropstudio/cropper"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("cropstudio"),
		kong.Description("Interactive avatar and banner cropping."),
		kong.UsageOnError(),
	)
	if err := cliCtx.Run(&args.Globals); err != nil {
		return err
	}

	return nil
}

type Globals struct {
	Verbose bool           `help:"Enable verbose logging" default:"false" env:"CROP_VERBOSE"`
	Crop    cropper.Config `embed:"" prefix:"crop-"`
}

// setup configures logging and returns a context cancelled on interrupt.
func (g *Globals) setup() (context.Context, context.CancelFunc, error) {
	level := zerolog.InfoLevel
	if g.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter()).Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	if err := g.Crop.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid crop config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	return log.Logger.WithContext(ctx), cancel, nil
}

type serveCmd struct {
	RootDir   string `arg:"" help:"Root directory to serve images from" type:"existingdir"`
	OutputDir string `help:"Directory for committed crops (default: <root-dir>/output)"`
	Open      bool   `help:"Open the browser automatically when the server starts" default:"true" negatable:""`
	Once      bool   `help:"Exit after the first committed crop" default:"false"`
}

func (cmd *serveCmd) Run(g *Globals) error {
	ctx, cancel, err := g.setup()
	if err != nil {
		return err
	}
	defer cancel()

	outputDir := cmd.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(cmd.RootDir, "output")
	}

	app := NewWebApp(Config{
		RootDir:   cmd.RootDir,
		OutputDir: outputDir,
		Crop:      g.Crop,
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down web application...")
		},
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
			if cmd.Open {
				if err := openBrowser(addr); err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("Failed to open browser")
				}
			}
		},
		OnCommit: func(file string, res *cropper.Result) {
			log.Ctx(ctx).Info().
				Str("file", filepath.Join(outputDir, file)).
				Int("width", res.Width).
				Int("height", res.Height).
				Msg("Saved crop")
			if cmd.Once {
				cancel()
			}
		},
	})

	if err := app.Run(ctx); err != nil {
		return err
	}

	return nil
}

type replayCmd struct {
	RootDir   string   `arg:"" help:"Directory the script file names are relative to" type:"existingdir"`
	Scripts   *os.File `arg:"" help:"JSONL file of recorded crop sessions, - for stdin"`
	OutputDir string   `help:"Directory for committed crops (default: <root-dir>/output)"`
	JSON      bool     `help:"Print the parsed scripts in JSON format without executing"`
}

func (cmd *replayCmd) Run(g *Globals) error {
	ctx, cancel, err := g.setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer cmd.Scripts.Close()

	scripts, err := readScripts(cmd.Scripts)
	if err != nil {
		return err
	}
	if cmd.JSON {
		printJSONL(scripts)
		return nil
	}

	outputDir := cmd.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(cmd.RootDir, "output")
	}
	executor := &ScriptExecutor{
		BaseDir:   cmd.RootDir,
		OutputDir: outputDir,
		Cropper:   NewEditorCropper(g.Crop, cropper.WithLogger(*log.Ctx(ctx))),
	}
	return executor.Exec(ctx, scripts)
}

type cliArgs struct {
	Globals

	Serve  serveCmd  `cmd:"" default:"withargs" help:"Serve the interactive cropper"`
	Replay replayCmd `cmd:"" help:"Replay recorded crop sessions and write their output"`
}

func printJSONL[T any](data []T) {
	enc := json.NewEncoder(os.Stdout)
	for _, item := range data {
		if err := enc.Encode(item); err != nil {
			log.Error().Err(err).Msg("Failed to encode item to JSON")
			continue
		}
	}
}

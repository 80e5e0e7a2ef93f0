package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/chartbook/internal"
	"github.com/starford/chartbook/internal/apperr"
	"github.com/starford/chartbook/internal/manifest"
	"github.com/starford/chartbook/internal/models"
	"github.com/starford/chartbook/internal/platform"
	pkgconfig "github.com/starford/chartbook/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "chartbook",
		Usage:   "Resolve, validate and serve chartbook pipeline and catalog manifests",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "platform",
				Usage:   "Platform key for platform-keyed paths (Windows or Unix)",
				Sources: cli.EnvVars("CHARTBOOK_PLATFORM"),
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Child pipelines of a catalog loaded in parallel",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log manifest resolution steps to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Load a manifest and print a summary",
				ArgsUsage: "[dir]",
				Action:    validate,
			},
			{
				Name:      "pipelines",
				Usage:     "Print the pipeline ids of a manifest",
				ArgsUsage: "[dir]",
				Action:    pipelines,
			},
			{
				Name:      "serve",
				Usage:     "Serve the project over HTTP and reload it on change",
				ArgsUsage: "[dir]",
				Flags:     []cli.Flag{configFlag()},
				Action:    serve,
			},
			{
				Name:      "mcp",
				Usage:     "Serve the project over MCP on stdin/stdout",
				ArgsUsage: "[dir]",
				Flags:     []cli.Flag{configFlag()},
				Action:    serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file (.yaml or .toml)",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func validate(ctx context.Context, cmd *cli.Command) error {
	m, err := load(ctx, cmd)
	if err != nil {
		return err
	}
	printSummary(cmd.Root().Writer, m)
	return nil
}

func pipelines(ctx context.Context, cmd *cli.Command) error {
	m, err := load(ctx, cmd)
	if err != nil {
		return err
	}
	for _, id := range manifest.ListPipelineIDs(m) {
		fmt.Fprintln(cmd.Root().Writer, id)
	}
	return nil
}

func load(ctx context.Context, cmd *cli.Command) (*models.Manifest, error) {
	dir := cmd.Args().First()
	if dir == "" {
		dir = "."
	}

	opts := []manifest.Option{manifest.WithConcurrency(int(cmd.Int("concurrency")))}
	if name := cmd.String("platform"); name != "" {
		p, err := platform.Parse(name)
		if err != nil {
			return nil, cli.Exit(apperr.Format(err), 1)
		}
		opts = append(opts, manifest.WithPlatform(p))
	}
	if cmd.Bool("verbose") {
		opts = append(opts, manifest.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}

	m, err := manifest.NewLoader(opts...).Load(ctx, dir)
	if err != nil {
		return nil, cli.Exit(apperr.Format(err), 1)
	}
	return m, nil
}

func printSummary(w io.Writer, m *models.Manifest) {
	fmt.Fprintf(w, "%s manifest: %s\n", m.Config.Type, m.ManifestPath)
	fmt.Fprintf(w, "  title: %s\n", m.SiteConfig.Title())
	fmt.Fprintf(w, "  theme: %s\n", m.SiteConfig.Theme())
	for _, id := range manifest.ListPipelineIDs(m) {
		p, err := manifest.ExtractPipeline(m, id)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  pipeline %s: %d dataframes, %d charts, %d notes\n",
			id, len(p.DataframeIDs), len(p.ChartIDs), len(p.NoteIDs))
		if p.HasSourceModified() {
			fmt.Fprintf(w, "    source last modified: %s\n", p.SourceLastModifiedString())
		}
		for _, dfID := range p.DataframeIDs {
			df := p.Dataframes[dfID]
			fmt.Fprintf(w, "    dataframe %s -> [%s]\n", dfID, strings.Join(df.LinkedCharts, ", "))
		}
	}
}

func appConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dir := cmd.Args().First(); dir != "" {
		cfg.Project.Path = dir
	}
	if cmd.IsSet("platform") {
		cfg.Project.Platform = cmd.String("platform")
	}
	if cmd.IsSet("concurrency") {
		cfg.Project.Concurrency = int(cmd.Int("concurrency"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := appConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := appConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return cli.Exit(apperr.Format(err), 1)
	}
	return nil
}

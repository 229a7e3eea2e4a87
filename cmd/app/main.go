package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/datalib/internal"
	pkgconfig "github.com/starford/datalib/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if user := cmd.String("user"); user != "" {
		cfg.MCP.UserID = user
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func importDir(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	user := cmd.String("user")
	if user == "" {
		user = cfg.Auth.DefaultUser
	}
	job := internal.ImportJob{
		Dir:     cmd.String("dir"),
		UserID:  user,
		Project: cmd.String("project"),
		Prune:   cmd.Bool("prune"),
		Watch:   cmd.Bool("watch"),
	}
	report, err := internal.RunImport(ctx, job, internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("import error: %w", err)
	}
	if !job.Watch {
		internal.PrintReport(os.Stdout, report)
	}
	return nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMigrate(ctx, internal.WithConfig(cfg))
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User id to act as",
		Sources: cli.EnvVars("DATALIB_USER"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "datalib",
		Usage:  "Knowledge-base data service: typed data items, projects and attachments over REST and MCP",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
				Flags:  []cli.Flag{userFlag()},
			},
			{
				Name:   "import",
				Usage:  "Import Markdown files as data items",
				Action: importDir,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Directory of Markdown files",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "project",
						Aliases: []string{"p"},
						Usage:   "Project id, slug or name (created if missing)",
					},
					userFlag(),
					&cli.BoolFlag{
						Name:  "prune",
						Usage: "Delete items whose source file is gone",
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Keep importing changes until interrupted",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations",
				Action: migrate,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

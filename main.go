package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cnosuke/rigil-proxy/config"
	"github.com/cnosuke/rigil-proxy/ledger"
	"github.com/cnosuke/rigil-proxy/logger"
	"github.com/cnosuke/rigil-proxy/pipeline"
	"github.com/cnosuke/rigil-proxy/server"
	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	Name     = "rigil-proxy"
	Version  = "0.0.1"
	Revision = "xxx"
)

func main() {
	var (
		cfg   *config.Config
		flush = func() {}
	)

	app := &cli.App{
		Name:    Name,
		Usage:   "A proxy that reduces web pages to text, headings, lists and links",
		Version: fmt.Sprintf("%s (%s)", Version, Revision),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			cfg, err = config.LoadConfig(c.String("config"))
			if err != nil {
				return errors.Wrap(err, "failed to load configuration")
			}
			flush, err = logger.Init(&logger.Config{
				Level:       cfg.Log.Level,
				Development: cfg.Log.Development,
				File:        cfg.Log.File,
				MaxSizeMB:   cfg.Log.MaxSizeMB,
				MaxBackups:  cfg.Log.MaxBackups,
				MaxAgeDays:  cfg.Log.MaxAgeDays,
			})
			return err
		},
		After: func(c *cli.Context) error {
			flush()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP proxy",
				Action: func(c *cli.Context) error {
					return server.Run(cfg, Name, Version, Revision)
				},
			},
			{
				Name:  "mcp",
				Usage: "Serve the simplify tools over MCP stdio",
				Action: func(c *cli.Context) error {
					return server.RunMCP(cfg, Name, Version, Revision)
				},
			},
			{
				Name:      "fetch",
				Usage:     "Simplify one or more URLs and print the result",
				ArgsUsage: "URL...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: pipeline.FormatHTML, Usage: "html or markdown"},
					&cli.StringFlag{Name: "api-key", Usage: "API key charged for the request", EnvVars: []string{"RIGIL_API_KEY"}},
				},
				Action: func(c *cli.Context) error {
					return fetchCommand(c, cfg)
				},
			},
			{
				Name:  "keys",
				Usage: "Manage API keys in the ledger",
				Subcommands: []*cli.Command{
					{
						Name:      "create",
						Usage:     "Create a key, generated when omitted",
						ArgsUsage: "[KEY]",
						Action: func(c *cli.Context) error {
							return withLedger(cfg, func(l *ledger.Ledger) error {
								data, err := l.CreateKey(c.Args().First())
								if err != nil {
									return err
								}
								return printJSON(data)
							})
						},
					},
					{
						Name:  "list",
						Usage: "List keys with their usage",
						Action: func(c *cli.Context) error {
							return withLedger(cfg, func(l *ledger.Ledger) error {
								return printJSON(l.List())
							})
						},
					},
					{
						Name:      "usage",
						Usage:     "Show the usage of one key",
						ArgsUsage: "KEY",
						Action: func(c *cli.Context) error {
							if c.NArg() != 1 {
								return errors.New("exactly one key is required")
							}
							return withLedger(cfg, func(l *ledger.Ledger) error {
								data, ok := l.Usage(c.Args().First())
								if !ok {
									return ledger.ErrKeyNotFound
								}
								return printJSON(data)
							})
						},
					},
					{
						Name:      "delete",
						Usage:     "Delete a key",
						ArgsUsage: "KEY",
						Action: func(c *cli.Context) error {
							if c.NArg() != 1 {
								return errors.New("exactly one key is required")
							}
							return withLedger(cfg, func(l *ledger.Ledger) error {
								return l.DeleteKey(c.Args().First())
							})
						},
					},
					{
						Name:  "stats",
						Usage: "Show totals over all keys",
						Action: func(c *cli.Context) error {
							return withLedger(cfg, func(l *ledger.Ledger) error {
								return printJSON(l.Stats())
							})
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.S().Errorw("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		flush()
		os.Exit(1)
	}
}

func fetchCommand(c *cli.Context, cfg *config.Config) error {
	urls := c.Args().Slice()
	if len(urls) == 0 {
		return errors.New("at least one URL is required")
	}

	comps, err := server.NewComponents(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	result, err := comps.Pipeline.TransduceMultiple(context.Background(), urls, c.String("api-key"))
	if err != nil {
		return err
	}

	failed := 0
	for _, u := range urls {
		if err, ok := result.Errors[u]; ok {
			fmt.Fprintf(os.Stderr, "%s: %v\n", u, err)
			failed++
			continue
		}
		out, err := pipeline.Render(result.Documents[u], c.String("format"))
		if err != nil {
			return err
		}
		fmt.Println(out)
	}

	if failed > 0 {
		return errors.Newf("%d of %d URLs failed", failed, len(urls))
	}
	return nil
}

func withLedger(cfg *config.Config, fn func(*ledger.Ledger) error) error {
	l, err := ledger.Open(cfg.Ledger.Driver, cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			zap.S().Warnw("failed to close ledger", "error", err)
		}
	}()
	return fn(l)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

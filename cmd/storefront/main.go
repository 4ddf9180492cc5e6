// Command storefront is a terminal storefront window. Run two of them over
// the same storage to see the cart follow across windows.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/chzyer/readline"
	"golang.org/x/sync/errgroup"

	"storefront-client/config"
	"storefront-client/pkg/logger"
	"storefront-client/pkg/storage"
)

type CLI struct {
	API        string `help:"API base URL. Overrides API_BASE_URL." placeholder:"URL"`
	Storage    string `help:"Storage driver: file, memory or redis. Overrides STORAGE_DRIVER." placeholder:"DRIVER"`
	StorageDir string `help:"Directory for the file storage driver. Overrides STORAGE_DIR." placeholder:"DIR" type:"path"`
	LogLevel   string `help:"Log level. Overrides LOG_LEVEL." placeholder:"LEVEL"`

	Shell shellCmd `cmd:"" default:"1" help:"Interactive cart shell (default)."`
}

func (c *CLI) apply(cfg *config.Config) {
	if c.API != "" {
		cfg.APIBaseURL = c.API
	}
	if c.Storage != "" {
		cfg.StorageDriver = c.Storage
	}
	if c.StorageDir != "" {
		cfg.StorageDir = c.StorageDir
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("storefront"),
		kong.Description("Storefront cart client."),
		kong.UsageOnError(),
	)

	cfg := config.LoadConfig()
	cli.apply(cfg)
	logger.Init(cfg.Env, cfg.LogLevel)
	kctx.FatalIfErrorf(cfg.Validate())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.FatalIfErrorf(kctx.Run(cfg))
}

type shellCmd struct{}

func (c *shellCmd) Run(ctx context.Context, cfg *config.Config) error {
	log := logger.Component("storefront")

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	a, err := newApp(ctx, cfg, store, os.Stdout, log)
	if err != nil {
		return err
	}
	defer a.Close()

	in, err := openInput()
	if err != nil {
		return err
	}
	sh, err := newShell(a, in)
	if err != nil {
		in.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gctx)
	g.Go(func() error {
		if err := a.watch(watchCtx); err != nil {
			// Other windows go unnoticed, this one still works.
			log.Warn().Err(err).Msg("Not following changes from other windows")
		}
		return nil
	})
	g.Go(func() error {
		defer stopWatch()
		stopInput := context.AfterFunc(gctx, func() { _ = in.Close() })
		defer stopInput()
		defer in.Close()
		return sh.run(gctx)
	})
	return g.Wait()
}

func openInput() (lineReader, error) {
	if !readline.DefaultIsTerminal() {
		return newScanReader(os.Stdin), nil
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cart> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, err
	}
	return rl, nil
}

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
)

// exitPanic unwinds out of kong when it wants to exit the process, which in
// the shell only means the current line is done.
type exitPanic struct{}

type lineReader interface {
	Readline() (string, error)
	Close() error
}

// scanReader reads lines from a non-terminal input such as a pipe.
type scanReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

func newScanReader(r io.ReadCloser) *scanReader {
	return &scanReader{scanner: bufio.NewScanner(r), closer: r}
}

func (s *scanReader) Readline() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scanReader) Close() error { return s.closer.Close() }

type shell struct {
	app    *app
	in     lineReader
	parser *kong.Kong
}

func newShell(a *app, in lineReader) (*shell, error) {
	parser, err := kong.New(&shellCommands{},
		kong.Name("cart"),
		kong.Writers(a.out, a.out),
		kong.Exit(func(int) { panic(exitPanic{}) }),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true, NoAppSummary: true}),
	)
	if err != nil {
		return nil, err
	}
	return &shell{app: a, in: in, parser: parser}, nil
}

// run executes lines until quit, end of input or ctx is done. A failing
// command prints its error and the shell carries on.
func (s *shell) run(ctx context.Context) error {
	for ctx.Err() == nil {
		line, err := s.in.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := shellquote.Split(line)
		if err != nil {
			s.app.printf("error: %s\n", err)
			continue
		}
		err = s.exec(ctx, args)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			s.app.printf("error: %s\n", err)
		}
	}
	return nil
}

func (s *shell) exec(ctx context.Context, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(exitPanic); ok {
				err = nil
				return
			}
			panic(r)
		}
	}()
	kctx, err := s.parser.Parse(args)
	if err != nil {
		return err
	}
	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(s.parser)
	return kctx.Run(s.app)
}

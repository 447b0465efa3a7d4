// boardctl is a command-line client for the task-board API.  It keeps the
// session in a JSON file between invocations; an expired access token is
// renewed transparently and the file is rewritten with the new pair.
//
// Usage:
//
//	boardctl [flags] register <email> <password> <name>
//	boardctl [flags] login <email> <password>
//	boardctl [flags] logout
//	boardctl [flags] me
//	boardctl [flags] boards list [--page N] [--limit N]
//	boardctl [flags] boards create <title> [--color #RRGGBB]
//	boardctl [flags] boards get <id>
//	boardctl [flags] boards update <id> [--title T] [--color #RRGGBB]
//	boardctl [flags] boards delete <id>
//	boardctl [flags] members add <board-id> <email> [--role admin|member]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/taskboard/internal/client"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globals struct {
	baseURL     string
	sessionPath string
	timeout     time.Duration
	page        int
	limit       int
	color       string
	title       string
	role        string
}

func newFlagSet(g *globals) *pflag.FlagSet {
	fs := pflag.NewFlagSet("boardctl", pflag.ContinueOnError)
	fs.StringVar(&g.baseURL, "url", envOr("BOARDCTL_URL", "http://localhost:8080"), "API base URL")
	fs.StringVar(&g.sessionPath, "session", envOr("BOARDCTL_SESSION", defaultSessionPath()), "session file")
	fs.DurationVar(&g.timeout, "timeout", 10*time.Second, "per-request timeout")
	fs.IntVar(&g.page, "page", 0, "page number for boards list")
	fs.IntVar(&g.limit, "limit", 0, "page size for boards list")
	fs.StringVar(&g.color, "color", "", "board background colour (#RRGGBB)")
	fs.StringVar(&g.title, "title", "", "new board title for boards update")
	fs.StringVar(&g.role, "role", "member", "role for members add (admin or member)")
	fs.SetInterspersed(true)
	return fs
}

func run(ctx context.Context, argv []string, out io.Writer) error {
	var g globals
	fs := newFlagSet(&g)
	if err := fs.Parse(argv); err != nil {
		return err
	}
	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	store, err := loadSession(g.sessionPath)
	if err != nil {
		return err
	}
	c := client.New(g.baseURL,
		client.WithSession(store),
		client.WithTimeout(g.timeout),
		client.WithLogoutHook(func() { _ = os.Remove(g.sessionPath) }),
	)

	result, err := dispatch(ctx, c, &g, fs, args)
	// A renewal may have rotated the pair even when the command failed.
	if saveErr := saveSession(g.sessionPath, store); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func dispatch(ctx context.Context, c *client.Client, g *globals, fs *pflag.FlagSet, args []string) (any, error) {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		if err := want(rest, 3, "register <email> <password> <name>"); err != nil {
			return nil, err
		}
		return c.Register(ctx, rest[0], rest[1], rest[2])
	case "login":
		if err := want(rest, 2, "login <email> <password>"); err != nil {
			return nil, err
		}
		return c.Login(ctx, rest[0], rest[1])
	case "logout":
		return nil, c.Logout(ctx)
	case "me":
		return c.Me(ctx)
	case "boards":
		return boards(ctx, c, g, fs, rest)
	case "members":
		if len(rest) == 0 || rest[0] != "add" {
			return nil, errors.New("usage: members add <board-id> <email> [--role admin|member]")
		}
		if err := want(rest[1:], 2, "members add <board-id> <email>"); err != nil {
			return nil, err
		}
		return c.AddMember(ctx, rest[1], rest[2], g.role)
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

func boards(ctx context.Context, c *client.Client, g *globals, fs *pflag.FlagSet, args []string) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("usage: boards list|create|get|update|delete")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return c.ListBoards(ctx, g.page, g.limit)
	case "create":
		if err := want(rest, 1, "boards create <title>"); err != nil {
			return nil, err
		}
		return c.CreateBoard(ctx, client.BoardInput{Title: rest[0], BackgroundColor: g.color})
	case "get":
		if err := want(rest, 1, "boards get <id>"); err != nil {
			return nil, err
		}
		return c.GetBoard(ctx, rest[0])
	case "update":
		if err := want(rest, 1, "boards update <id> [--title T] [--color C]"); err != nil {
			return nil, err
		}
		var patch client.BoardPatch
		if fs.Changed("title") {
			patch.Title = &g.title
		}
		if fs.Changed("color") {
			patch.BackgroundColor = &g.color
		}
		if patch.Title == nil && patch.BackgroundColor == nil {
			return nil, errors.New("boards update: nothing to change")
		}
		return c.UpdateBoard(ctx, rest[0], patch)
	case "delete":
		if err := want(rest, 1, "boards delete <id>"); err != nil {
			return nil, err
		}
		return nil, c.DeleteBoard(ctx, rest[0])
	}
	return nil, fmt.Errorf("unknown boards command %q", sub)
}

func want(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".boardctl-session.json"
	}
	return filepath.Join(dir, "boardctl", "session.json")
}

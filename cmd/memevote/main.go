// Command memevote runs registry operations against
// a configured store.
//
//	memevote [flags] <command> [args]
//
// Commands:
//
//	create <title> <url>    create a meme and print its id
//	vote <id>               vote for a meme
//	get <id>                print a meme
//	list <from> <limit>     print memes in id order
//	top <limit>             print the highest ranked memes
//	voted <identity> <id>   print whether identity voted for a meme
//	count                   print the number of memes
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pavlenkotm/memevote/memevote/app"
	"github.com/pavlenkotm/memevote/memevote/config"
	"github.com/pavlenkotm/memevote/memevote/memevotepb"
	"github.com/pavlenkotm/memevote/memevote/registry"
	"github.com/pavlenkotm/memevote/utils/log"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage: memevote [flags] <create|vote|get|list|top|voted|count> [args]")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "memevote: %s\n", err)
		os.Exit(1)
	}
}

type command struct {
	args   int
	caller bool
	run    func(ctx context.Context, r registry.Registry, caller registry.Identity, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"create": {args: 2, caller: true, run: create},
	"vote":   {args: 1, caller: true, run: vote},
	"get":    {args: 1, run: get},
	"list":   {args: 2, run: list},
	"top":    {args: 1, run: top},
	"voted":  {args: 2, run: voted},
	"count":  {args: 0, run: count},
}

func run(args []string, stdout io.Writer, stderr io.Writer, lookupEnv config.LookupEnv) error {
	flags := flag.NewFlagSet("memevote", flag.ContinueOnError)
	flags.SetOutput(stderr)

	user, _ := lookupEnv("USER")
	configPath := flags.String("config", "", "path to a YAML config file")
	as := flags.String("as", user, "caller identity")
	plugin := flags.String("plugin", "", "storage plugin (bbolt, sqlite, postgres, memory)")
	path := flags.String("path", "", "storage file for bbolt and sqlite")
	dsn := flags.String("dsn", "", "postgres connection string")
	metrics := flags.String("metrics", "", "write event counters in Prometheus text format to this file")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() == 0 {
		return errUsage
	}

	name := flags.Arg(0)
	cmd, ok := commands[name]

	if !ok {
		return fmt.Errorf("unknown command %q\n%s", name, errUsage)
	}

	if flags.NArg()-1 != cmd.args {
		return fmt.Errorf("%s takes %d arguments\n%s", name, cmd.args, errUsage)
	}

	if cmd.caller && *as == "" {
		return fmt.Errorf("%s needs a caller identity: pass -as or set USER", name)
	}

	cfg, err := config.Load(*configPath, lookupEnv)

	if err != nil {
		return err
	}

	if *plugin != "" {
		cfg.Storage.Plugin = *plugin
	}

	if *path != "" {
		cfg.Storage.Path = *path
	}

	if *dsn != "" {
		cfg.Storage.DSN = *dsn
	}

	if *metrics != "" {
		cfg.Events.Metrics = true
		cfg.Events.MetricsFile = *metrics
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg.Log)

	if err != nil {
		return err
	}

	defer logger.Sync()

	a, err := app.New(cfg, logger)

	if err != nil {
		return err
	}

	ctx := log.WithFields(context.Background(), zap.String("command", name), zap.String("caller", *as))
	err = cmd.run(ctx, a.Registry, registry.Identity(*as), flags.Args()[1:], stdout)

	if closeErr := a.Close(); err == nil {
		err = closeErr
	}

	return err
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)

	if err != nil {
		return 0, fmt.Errorf("invalid meme id %q", s)
	}

	return uint32(id), nil
}

func parseLimit(s string) (int, error) {
	limit, err := strconv.Atoi(s)

	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", s)
	}

	return limit, nil
}

func printMeme(stdout io.Writer, meme memevotepb.Meme) error {
	data, err := memevotepb.MarshalJSON(&meme)

	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(stdout, "%s\n", data)

	return err
}

func printMemes(stdout io.Writer, memes []memevotepb.Meme) error {
	for _, meme := range memes {
		if err := printMeme(stdout, meme); err != nil {
			return err
		}
	}

	return nil
}

func create(ctx context.Context, r registry.Registry, caller registry.Identity, args []string, stdout io.Writer) error {
	id, err := r.Create(ctx, caller, args[0], args[1])

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, id)

	return err
}

func vote(ctx context.Context, r registry.Registry, caller registry.Identity, args []string, stdout io.Writer) error {
	id, err := parseID(args[0])

	if err != nil {
		return err
	}

	return r.VoteUp(ctx, caller, id)
}

func get(ctx context.Context, r registry.Registry, caller registry.Identity, args []string, stdout io.Writer) error {
	id, err := parseID(args[0])

	if err != nil {
		return err
	}

	meme, found, err := r.Get(ctx, id)

	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("meme %d: %w", id, registry.ErrRecordNotFound)
	}

	return printMeme(stdout, meme)
}

func list(ctx context.Context, r registry.Registry, caller registry.Identity, args []string, stdout io.Writer) error {
	from, err := strconv.ParseInt(args[0], 10, 64)

	if err != nil {
		return fmt.Errorf("invalid start id %q", args[0])
	}

	limit, err := parseLimit(args[1])

	if err != nil {
		return err
	}

	memes, err := r.ListRange(ctx, from, limit)

	if err != nil {
		return err
	}

	return printMemes(stdout, memes)
}

func top(ctx context.Context, r registry.Registry, caller registry.Identity, args []string, stdout io.Writer) error {
	limit, err := parseLimit(args[0])

	if err != nil {
		return err
	}

	memes, err := r.ListTopRanked(ctx, limit)

	if err != nil {
		return err
	}

	return printMemes(stdout, memes)
}

func voted(ctx context.Context, r registry.Registry, caller registry.Identity, args []string, stdout io.Writer) error {
	id, err := parseID(args[1])

	if err != nil {
		return err
	}

	hasVoted, err := r.HasVoted(ctx, registry.Identity(args[0]), id)

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, hasVoted)

	return err
}

func count(ctx context.Context, r registry.Registry, caller registry.Identity, args []string, stdout io.Writer) error {
	n, err := r.TotalCount(ctx)

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, n)

	return err
}

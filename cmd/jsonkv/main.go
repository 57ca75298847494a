package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"jsonkv/internal/config"
	"jsonkv/internal/exit"
	"jsonkv/internal/keyspace"
	"jsonkv/internal/server"
	"jsonkv/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, exitResult := config.Parse(os.Args)
	if exitResult != nil {
		exitResult.Print()
		return exitResult.ExitCode
	}

	logger := newLogger(cfg.LogLevel)

	st, err := store.Open(keyspace.Config{Dir: cfg.DataDir}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exit.CodeError
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result := dispatch(ctx, cfg, st, logger)
	result.Print()
	return result.ExitCode
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func dispatch(ctx context.Context, cfg *config.Config, st *store.Store, logger zerolog.Logger) *exit.Result {
	switch cfg.Command {
	case "set":
		return cmdSet(ctx, cfg, st)
	case "get":
		return cmdGet(ctx, cfg, st)
	case "del":
		return cmdDel(ctx, cfg, st)
	case "type":
		return cmdType(ctx, cfg, st)
	case "keys":
		return cmdKeys(ctx, cfg, st)
	case "serve":
		return cmdServe(ctx, cfg, st, logger)
	default:
		return exit.Usagef("Error: unknown command %q\n\n%s", cfg.Command, config.Usage())
	}
}

func pathArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "$"
}

func cmdSet(ctx context.Context, cfg *config.Config, st *store.Store) *exit.Result {
	if len(cfg.Args) < 2 {
		return exit.Usagef("Error: set requires <key> <json> [path]\n")
	}
	if err := st.Set(ctx, cfg.Args[0], pathArg(cfg.Args, 2), []byte(cfg.Args[1])); err != nil {
		return exit.Errorf("Error: %v\n", err)
	}
	return exit.Success("OK\n")
}

func cmdGet(ctx context.Context, cfg *config.Config, st *store.Store) *exit.Result {
	if len(cfg.Args) < 1 {
		return exit.Usagef("Error: get requires <key> [path]\n")
	}
	ms, err := st.Get(ctx, cfg.Args[0], pathArg(cfg.Args, 1))
	if err != nil {
		return exit.Errorf("Error: %v\n", err)
	}

	var b strings.Builder
	it := ms.Iterator()
	defer it.Release()
	for {
		node, err := it.Next()
		if err != nil {
			break
		}
		b.WriteString(node.JSON())
		b.WriteByte('\n')
	}
	return exit.Success(b.String())
}

func cmdDel(ctx context.Context, cfg *config.Config, st *store.Store) *exit.Result {
	if len(cfg.Args) < 1 {
		return exit.Usagef("Error: del requires <key> [path]\n")
	}
	n, err := st.Del(ctx, cfg.Args[0], pathArg(cfg.Args, 1))
	if err != nil {
		return exit.Errorf("Error: %v\n", err)
	}
	return exit.Success(fmt.Sprintf("%d\n", n))
}

func cmdType(ctx context.Context, cfg *config.Config, st *store.Store) *exit.Result {
	if len(cfg.Args) < 1 {
		return exit.Usagef("Error: type requires <key> [path]\n")
	}
	types, err := st.TypeOf(ctx, cfg.Args[0], pathArg(cfg.Args, 1))
	if err != nil {
		return exit.Errorf("Error: %v\n", err)
	}
	return exit.Success(strings.Join(types, "\n") + "\n")
}

func cmdKeys(ctx context.Context, cfg *config.Config, st *store.Store) *exit.Result {
	prefix := ""
	if len(cfg.Args) > 0 {
		prefix = cfg.Args[0]
	}
	keys, err := st.Keys(ctx, prefix)
	if err != nil {
		return exit.Errorf("Error: %v\n", err)
	}
	if len(keys) == 0 {
		return exit.Success("")
	}
	return exit.Success(strings.Join(keys, "\n") + "\n")
}

func cmdServe(ctx context.Context, cfg *config.Config, st *store.Store, logger zerolog.Logger) *exit.Result {
	srv := server.New(st, logger, cfg.RateLimit)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Listen)
	}()
	logger.Info().Str("addr", cfg.Listen).Str("dir", cfg.DataDir).Msg("serving")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return exit.Errorf("Error: shutdown: %v\n", err)
		}
		return exit.Success("")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exit.Errorf("Error: %v\n", err)
		}
		return exit.Success("")
	}
}

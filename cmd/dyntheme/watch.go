package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gnana997/dyntheme/pkg/devserver"
	"github.com/gnana997/dyntheme/pkg/plugin"
	"github.com/gnana997/dyntheme/pkg/session"
	"github.com/gnana997/dyntheme/pkg/util"
	"github.com/gnana997/dyntheme/pkg/watch"
)

const defaultDevAddr = "127.0.0.1:5174"

type watchOptions struct {
	addr     string
	debounce time.Duration
}

func newWatchCmd(a *app) *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-extract on change and push theme rules to the dev runtime",
		Long: `watch transforms every stylesheet, then re-transforms each one that changes.
Extracted rules are queued per module and broadcast to runtime clients
connected to the dev server websocket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWatch(ctx, opts, nil)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", defaultDevAddr, "Dev server listen address")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "Delay before re-transforming a changed file (default 200ms)")
	return cmd
}

// runWatch serves until ctx is cancelled. ready, when not nil, receives the
// dev server address once it listens.
func (a *app) runWatch(ctx context.Context, opts watchOptions, ready chan<- string) error {
	cfg, err := a.project()
	if err != nil {
		return err
	}
	set, err := a.newPluginSet(cfg)
	if err != nil {
		return err
	}
	defer set.Close()

	queue := devserver.NewQueue()
	sess := session.New(cfg.sessionEnv(session.CommandServe),
		session.WithLogger(a.logger),
		session.WithDevSink(queue),
	)

	files := util.NewFileCache(&util.FileCacheConfig{MaxFiles: 1000, Logger: a.logger})
	defer files.Close()

	watcher, err := watch.New(sess, set.plugins, files, watch.Options{
		Debounce:  opts.debounce,
		Discovery: cfg.discovery(),
		OnRemove: func(id string) {
			queue.Remove(id)
			queue.Remove(plugin.DarkQueueID(id))
		},
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	srv := devserver.New(queue, a.logger)
	addrs := make(chan string, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		addr, ok := <-addrs
		if !ok {
			return
		}
		color.New(color.FgCyan).Fprintf(a.out, "dyntheme watching %s, %d modules queued\n", cfg.Root, queue.Len())
		fmt.Fprintf(a.out, "  runtime: ws://%s%s\n", addr, devserver.WebSocketPath)
		if ready != nil {
			ready <- addr
		}
	}()

	err = srv.ListenAndServe(ctx, opts.addr, addrs)
	close(addrs)
	<-done
	return err
}

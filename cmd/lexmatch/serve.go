package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lexmatch/internal/debug"
	"github.com/standardbeagle/lexmatch/internal/extractor"
	"github.com/standardbeagle/lexmatch/internal/mcp"
	"github.com/standardbeagle/lexmatch/internal/server"
)

func watchFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "watch",
		Aliases: []string{"w"},
		Usage:   "Reload when vocabulary files change (default: watch.enabled from the config)",
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve extraction over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address (default: server.addr from the config)",
			},
			watchFlag(),
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	ex, err := newExtractor(ctx, c)
	if err != nil {
		return err
	}

	addr := c.String("addr")
	if addr == "" {
		addr = ex.Config().Server.Addr
	}
	srv := server.New(ex, addr)

	w, err := startWatcher(c, ex)
	if err != nil {
		return err
	}
	if w != nil {
		defer w.Stop()
		srv.SetWatcher(w)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	stats := ex.Stats()
	fmt.Fprintf(c.App.Writer, "Serving %d vocabulary groups on http://%s\n", stats.Groups, srv.Addr())

	<-ctx.Done()
	fmt.Fprintln(c.App.Writer, "Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:   "mcp",
		Usage:  "Serve extraction tools over MCP on stdio",
		Flags:  []cli.Flag{watchFlag()},
		Action: runMCP,
	}
}

func runMCP(c *cli.Context) error {
	// stdout carries the protocol
	debug.SetMCPMode(true)
	log.SetOutput(c.App.ErrWriter)

	ctx, cancel := signalContext(c)
	defer cancel()

	ex, err := newExtractor(ctx, c)
	if err != nil {
		return debug.Fatal("failed to load vocabulary: %v\n", err)
	}

	w, err := startWatcher(c, ex)
	if err != nil {
		return debug.Fatal("failed to start watcher: %v\n", err)
	}
	if w != nil {
		defer w.Stop()
	}

	srv, err := mcp.NewServer(ex)
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v\n", err)
	}
	defer srv.Close()

	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return debug.Fatal("MCP server error: %v\n", err)
	}
	return nil
}

// startWatcher returns nil when watching is disabled
func startWatcher(c *cli.Context, ex *extractor.Extractor) (*extractor.Watcher, error) {
	cfg := ex.Config()
	enabled := cfg.Watch.Enabled
	if c.IsSet("watch") {
		enabled = c.Bool("watch")
	}
	if !enabled {
		return nil, nil
	}

	w, err := extractor.NewWatcher(ex, time.Duration(cfg.Watch.DebounceMs)*time.Millisecond)
	if err != nil {
		return nil, err
	}
	w.OnReload(func(err error) {
		if err != nil {
			return
		}
		stats := ex.Stats()
		log.Printf("Vocabulary reloaded: %d groups (%d reused)", stats.Groups, stats.ReusedGroups)
	})
	if err := w.Start(); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}

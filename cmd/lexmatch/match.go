package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lexmatch/internal/extractor"
	"github.com/standardbeagle/lexmatch/internal/server"
	"github.com/standardbeagle/lexmatch/internal/types"
)

// maxLineBytes bounds one JSON-lines record
const maxLineBytes = 16 << 20

func remoteFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "remote",
		Usage: "Use a running 'lexmatch serve' at this address instead of loading sources",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output as JSON",
	}
}

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:    "match",
		Aliases: []string{"m"},
		Usage:   "Read JSON-lines messages, append matched entities, write JSON lines",
		Description: `Each input line is a message: {"tokens": [{"text": "Jon", "start": 0, "end": 3}]}.
A message with "text" and no tokens is split on whitespace. With --text every
line is raw text instead of JSON.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Read from file instead of stdin",
			},
			&cli.BoolFlag{
				Name:    "text",
				Aliases: []string{"t"},
				Usage:   "Treat each input line as raw text",
			},
			&cli.IntFlag{
				Name:  "batch",
				Usage: "Messages matched in parallel per batch",
				Value: 256,
			},
			remoteFlag(),
		},
		Action: runMatch,
	}
}

type batchFunc func(ctx context.Context, msgs []types.Message) ([]types.Message, error)

func runMatch(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	in := c.App.Reader
	if path := c.String("input"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var process batchFunc
	if remote := c.String("remote"); remote != "" {
		client := server.NewClient(remote)
		process = func(_ context.Context, msgs []types.Message) ([]types.Message, error) {
			return client.ExtractBatch(msgs)
		}
	} else {
		ex, err := newExtractor(ctx, c)
		if err != nil {
			return err
		}
		process = func(ctx context.Context, msgs []types.Message) ([]types.Message, error) {
			return msgs, ex.ProcessBatch(ctx, msgs)
		}
	}

	batchSize := c.Int("batch")
	if batchSize <= 0 {
		batchSize = 1
	}
	return matchStream(ctx, in, c.App.Writer, c.Bool("text"), batchSize, process)
}

// matchStream reads messages from in and writes processed messages to out
// in input order.
func matchStream(ctx context.Context, in io.Reader, out io.Writer, rawText bool, batchSize int, process batchFunc) error {
	w := bufio.NewWriter(out)
	defer w.Flush()
	enc := json.NewEncoder(w)

	batch := make([]types.Message, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		processed, err := process(ctx, batch)
		if err != nil {
			return err
		}
		for i := range processed {
			if err := enc.Encode(processed[i]); err != nil {
				return err
			}
		}
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		var msg types.Message
		if rawText {
			msg.Text = string(data)
		} else if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, msg)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

func lookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Aliases:   []string{"l"},
		Usage:     "Show every group's candidates for a piece of text, ignoring the threshold",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "entity",
				Aliases: []string{"e"},
				Usage:   "Only show groups with this entity label",
			},
			jsonFlag(),
			remoteFlag(),
		},
		Action: func(c *cli.Context) error {
			text := joinArgs(c)
			if text == "" {
				return fmt.Errorf("lookup requires text")
			}

			var groups []extractor.GroupCandidates
			if remote := c.String("remote"); remote != "" {
				resp, err := server.NewClient(remote).Lookup(text)
				if err != nil {
					return err
				}
				groups = resp.Groups
			} else {
				ex, err := newExtractor(c.Context, c)
				if err != nil {
					return err
				}
				groups = ex.Lookup(text)
			}

			if entity := c.String("entity"); entity != "" {
				filtered := make([]extractor.GroupCandidates, 0, len(groups))
				for _, g := range groups {
					if g.Entity == entity {
						filtered = append(filtered, g)
					}
				}
				groups = filtered
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, groups)
			}
			printCandidates(c.App.Writer, text, groups)
			return nil
		},
	}
}

func printCandidates(out io.Writer, text string, groups []extractor.GroupCandidates) {
	if len(groups) == 0 {
		fmt.Fprintf(out, "No candidates for %q\n", text)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, g := range groups {
		header := g.Entity
		if g.Canonical != "" {
			header += " -> " + g.Canonical
		}
		if g.Source != "" {
			header += " [" + g.Source + "]"
		}
		fmt.Fprintln(tw, header)
		for _, cand := range g.Candidates {
			fmt.Fprintf(tw, "  %.3f\t%s\n", cand.Score, cand.Value)
		}
	}
	tw.Flush()
}

func vocabCommand() *cli.Command {
	return &cli.Command{
		Name:    "vocab",
		Aliases: []string{"vocabularies"},
		Usage:   "List the vocabulary groups in match order",
		Flags:   []cli.Flag{jsonFlag(), remoteFlag()},
		Action: func(c *cli.Context) error {
			var groups []types.GroupInfo
			if remote := c.String("remote"); remote != "" {
				var err error
				if groups, err = server.NewClient(remote).Vocabularies(); err != nil {
					return err
				}
			} else {
				ex, err := newExtractor(c.Context, c)
				if err != nil {
					return err
				}
				groups = ex.Groups()
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, groups)
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tCANONICAL\tMEMBERS\tSOURCE\tFINGERPRINT")
			for _, g := range groups {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", g.Label, dash(g.Canonical), g.Members, dash(g.Source), g.Fingerprint)
			}
			return tw.Flush()
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show vocabulary statistics of a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Server address (default: server.addr from the config)",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			client, err := remoteClient(c)
			if err != nil {
				return err
			}
			status, err := client.Status()
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, status)
			}

			v := status.Vocabulary
			fmt.Fprintf(c.App.Writer, "lexmatch %s, up %.0fs\n", status.Version, status.UptimeSeconds)
			fmt.Fprintf(c.App.Writer, "Groups: %d (%d members) from %d sources, min confidence %.2f\n", v.Groups, v.Members, v.Sources, v.MinConfidence)
			fmt.Fprintf(c.App.Writer, "Reloads: %d (last reused %d groups)\n", v.Reloads, v.ReusedGroups)
			if v.LastError != "" {
				fmt.Fprintf(c.App.Writer, "Last error: %s\n", v.LastError)
			}
			if len(v.FailedSources) > 0 {
				fmt.Fprintf(c.App.Writer, "Failed sources: %s\n", strings.Join(v.FailedSources, ", "))
			}
			if status.Watch != nil {
				fmt.Fprintf(c.App.Writer, "Watching %d patterns: %d events, %d reloads, %d errors\n",
					len(status.Watch.Patterns), status.Watch.EventsProcessed, status.Watch.Reloads, status.Watch.ErrorCount)
			}
			return nil
		},
	}
}

func reloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "reload",
		Usage: "Ask a running server to reload its vocabulary sources",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Server address (default: server.addr from the config)",
			},
		},
		Action: func(c *cli.Context) error {
			client, err := remoteClient(c)
			if err != nil {
				return err
			}
			resp, err := client.Reload()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Reloaded: %d groups (%d reused)\n", resp.Stats.Groups, resp.Stats.ReusedGroups)
			if !resp.Success {
				return fmt.Errorf("reload finished with errors: %s", resp.Error)
			}
			return nil
		},
	}
}

func remoteClient(c *cli.Context) (*server.Client, error) {
	addr := c.String("remote")
	if addr == "" {
		cfg, err := loadConfigWithOverrides(c)
		if err != nil {
			return nil, err
		}
		addr = cfg.Server.Addr
	}
	return server.NewClient(addr), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

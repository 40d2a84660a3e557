// ABOUTME: histctl subcommands mapping one-to-one onto history engine operations
// ABOUTME: Payloads are arbitrary JSON documents read from an argument or stdin

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/mauromedda/canvas-history-go/internal/browse"
	"github.com/mauromedda/canvas-history-go/internal/diff"
	"github.com/mauromedda/canvas-history-go/internal/timeline"
	"github.com/mauromedda/canvas-history-go/pkg/history"
)

// readPayload returns compacted JSON from arg, or from in when arg is "" or "-".
func readPayload(arg string, in io.Reader) (json.RawMessage, error) {
	raw := []byte(arg)
	if arg == "" || arg == "-" {
		b, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("reading payload: %w", err)
		}
		raw = b
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(raw)); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

func parseStateID(s string) (history.StateID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid state id %q", s)
	}
	return history.StateID(n), nil
}

func newRecordCmd(a *app) *cobra.Command {
	var desc, tool, layer string
	cmd := &cobra.Command{
		Use:   "record <name> [json|-]",
		Short: "Record a snapshot as the next state",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) == 2 {
				arg = args[1]
			}
			data, err := readPayload(arg, cmd.InOrStdin())
			if err != nil {
				return err
			}
			st, err := a.engine.Push(args[0], data,
				history.WithDescription(desc),
				history.WithMetadata(history.Metadata{Tool: tool, LayerID: layer}))
			if err != nil {
				return err
			}
			a.printState(cmd.OutOrStdout(), "recorded", st)
			return nil
		},
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "longer description")
	cmd.Flags().StringVar(&tool, "tool", "", "tool that produced the edit")
	cmd.Flags().StringVar(&layer, "layer", "", "layer the edit applies to")
	return cmd
}

// importLine is one JSON Lines entry accepted by import.
type importLine struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Tool        string          `json:"tool,omitempty"`
	Data        json.RawMessage `json:"data"`
}

func newImportCmd(a *app) *cobra.Command {
	var batch string
	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Record JSON Lines entries atomically; any bad line rolls back the rest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			run := func() error { return importLines(a.engine, in, cmd.OutOrStdout()) }
			if batch == "" {
				return run()
			}
			return a.engine.Batch(batch, run)
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "collapse all entries into one state with this name")
	return cmd
}

func importLines(e *history.Engine[json.RawMessage], in io.Reader, out io.Writer) error {
	tx := e.Transaction("import")
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var l importLine
		if err := json.Unmarshal([]byte(text), &l); err != nil {
			return errors.Join(fmt.Errorf("line %d: %w", lineNo, err), tx.Rollback())
		}
		if len(l.Data) == 0 {
			return errors.Join(fmt.Errorf("line %d: missing data", lineNo), tx.Rollback())
		}
		if _, err := tx.Push(l.Name, l.Data,
			history.WithDescription(l.Description),
			history.WithMetadata(history.Metadata{Tool: l.Tool})); err != nil {
			return errors.Join(fmt.Errorf("line %d: %w", lineNo, err), tx.Rollback())
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Join(fmt.Errorf("reading input: %w", err), tx.Rollback())
	}
	n, err := tx.Commit()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d states\n", n)
	return nil
}

func newLogCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the active branch, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := a.render()
			opts.Limit = limit
			fmt.Fprint(cmd.OutOrStdout(), timeline.Log(a.engine.States(), a.engine.CurrentID(), opts))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n states")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one state (default: current) with its payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				st history.State[json.RawMessage]
				ok bool
			)
			if len(args) == 1 {
				id, err := parseStateID(args[0])
				if err != nil {
					return err
				}
				st, ok = a.engine.State(id)
			} else {
				st, ok = a.engine.Current()
			}
			if !ok {
				return history.ErrStateNotFound
			}

			out := cmd.OutOrStdout()
			if raw {
				_, err := fmt.Fprintln(out, string(st.Data))
				return err
			}
			md := timeline.Markdown(st, prettyJSON(st.Data))
			fmt.Fprintln(out, renderMarkdown(md, a.width, a.color))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print only the JSON payload")
	return cmd
}

// renderMarkdown styles md for a terminal, falling back to the raw text.
func renderMarkdown(md string, width int, color bool) string {
	if !color {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n ")
}

// prettyJSON indents a payload for display, leaving invalid JSON as is.
func prettyJSON(data json.RawMessage) string {
	var b bytes.Buffer
	if err := json.Indent(&b, data, "", "  "); err != nil {
		return string(data)
	}
	return b.String()
}

func newDiffCmd(a *app) *cobra.Command {
	var context int
	cmd := &cobra.Command{
		Use:   "diff <from> [to]",
		Short: "Diff the payloads of two states (default to: current)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromID, err := parseStateID(args[0])
			if err != nil {
				return err
			}
			toID := a.engine.CurrentID()
			if len(args) == 2 {
				if toID, err = parseStateID(args[1]); err != nil {
					return err
				}
			}
			from, ok := a.engine.State(fromID)
			if !ok {
				return fmt.Errorf("state %d: %w", fromID, history.ErrStateNotFound)
			}
			to, ok := a.engine.State(toID)
			if !ok {
				return fmt.Errorf("state %d: %w", toID, history.ErrStateNotFound)
			}

			out := cmd.OutOrStdout()
			u := diff.Unified(
				fmt.Sprintf("%d %s", from.ID, from.Name),
				fmt.Sprintf("%d %s", to.ID, to.Name),
				prettyJSON(from.Data), prettyJSON(to.Data), context)
			if u == "" {
				fmt.Fprintln(out, "no differences")
				return nil
			}
			if a.color {
				u = diff.Colorize(u)
			}
			fmt.Fprint(out, u)
			return nil
		},
	}
	cmd.Flags().IntVarP(&context, "context", "U", 3, "lines of context")
	return cmd
}

func newUndoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Move the current pointer one step back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, ok := a.engine.Undo()
			if !ok {
				return errors.New("nothing to undo")
			}
			a.printState(cmd.OutOrStdout(), "at", st)
			return nil
		},
	}
}

func newRedoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Move the current pointer one step forward",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, ok := a.engine.Redo()
			if !ok {
				return errors.New("nothing to redo")
			}
			a.printState(cmd.OutOrStdout(), "at", st)
			return nil
		},
	}
}

func newGotoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "goto <id>",
		Short: "Jump to any state, switching branch if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStateID(args[0])
			if err != nil {
				return err
			}
			st, ok := a.engine.GoToState(id)
			if !ok {
				return fmt.Errorf("state %d: %w", id, history.ErrStateNotFound)
			}
			a.printState(cmd.OutOrStdout(), "at", st)
			return nil
		},
	}
}

func newBranchCmd(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "List branches, or fork a new one from the current state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprint(out, timeline.Branches(a.engine.Branches(), a.render()))
				return nil
			}
			var at []history.StateID
			if from != "" {
				id, err := parseStateID(from)
				if err != nil {
					return err
				}
				at = append(at, id)
			}
			br, err := a.engine.CreateBranch(args[0], at...)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "created branch %s (%s) at state %d\n", br.Name, br.ID, br.ParentStateID)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "fork from this state id instead of the current one")
	return cmd
}

func newSwitchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <branch>",
		Short: "Activate a branch by id or name and move to its tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := history.BranchID(args[0])
			for _, br := range a.engine.Branches() {
				if br.Name == args[0] {
					id = br.ID
					break
				}
			}
			br, ok := a.engine.SwitchBranch(id)
			if !ok {
				return fmt.Errorf("unknown branch %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "switched to %s (%s) at state %d\n", br.Name, br.ID, br.Tip())
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy-search state names and descriptions across all branches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matches := a.engine.Search(strings.Join(args, " "), limit)
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%d\t%s\t%s\n", m.StateID, m.BranchID, m.Label)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of matches")
	return cmd
}

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Walk the history interactively",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return browse.Run(a.engine, a.color)
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored states, branches and memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.engine.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "states:        %d\n", s.States)
			fmt.Fprintf(out, "branches:      %d\n", s.Branches)
			fmt.Fprintf(out, "active states: %d\n", s.ActiveStates)
			fmt.Fprintf(out, "active memory: %d bytes\n", s.ActiveMemory)
			fmt.Fprintf(out, "total memory:  %d bytes\n", s.TotalMemory)
			fmt.Fprintf(out, "current:       %d\n", a.engine.CurrentID())
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every state and branch of the document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			a.engine.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing")
	return cmd
}

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List document keys stored in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.sqlite == nil {
				return errors.New("keys requires the sqlite store")
			}
			// Make this invocation's own writes visible.
			a.sink.Flush()
			keys, err := a.sqlite.Keys()
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

// ABOUTME: CLI entry point for histctl, a command-line front end to a persisted canvas history
// ABOUTME: Builds the cobra command tree; each invocation opens the store, acts and flushes

package main

import (
	"fmt"
	"io"
	"os"

	// termfix must be imported before any package that imports bubbletea.
	_ "github.com/mauromedda/canvas-history-go/internal/termfix"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	root, a := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	err := root.Execute()
	// Close even when a command failed: a rollback still has writes to flush.
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd wires every subcommand to a fresh app bound to the given streams.
// The caller must close the app after Execute.
func newRootCmd(in io.Reader, out, errOut io.Writer) (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "histctl",
		Short:         "Inspect and navigate a branching canvas edit history",
		Long:          `histctl records JSON snapshots into a persisted undo/redo history and lets you move through it: undo, redo, jump, fork and switch branches, search and browse.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.OutOrStdout())
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.db, "db", "", "sqlite database path (default ~/.canvas-history/history.db, env CANVAS_HISTORY_DB)")
	pf.StringVar(&a.flags.dir, "dir", "", "store records as JSON files in this directory instead of sqlite")
	pf.StringVarP(&a.flags.key, "key", "k", "", "document storage key")
	pf.StringVar(&a.flags.project, "project", ".", "project root holding .canvas-history/config.yaml")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable styled output")

	root.AddCommand(
		newRecordCmd(a),
		newImportCmd(a),
		newLogCmd(a),
		newShowCmd(a),
		newDiffCmd(a),
		newUndoCmd(a),
		newRedoCmd(a),
		newGotoCmd(a),
		newBranchCmd(a),
		newSwitchCmd(a),
		newSearchCmd(a),
		newBrowseCmd(a),
		newStatsCmd(a),
		newClearCmd(a),
		newKeysCmd(a),
	)
	return root, a
}

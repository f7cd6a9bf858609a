// Command mtn-store is a thin operator shell over the storage engine:
// database integrity checks and workspace plumbing (add/drop/rename/
// pivot-root, checkout/update/commit/merge, bisect). It does not
// implement networking or any other porcelain above the engine.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dscherger/monotone-sub002/logging"
	"github.com/dscherger/monotone-sub002/store"
	"github.com/dscherger/monotone-sub002/vocab"
	"github.com/dscherger/monotone-sub002/workspace"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mtn-store",
	Short: "Storage engine plumbing: integrity checks and workspace operations",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(pivotRootCmd)
	rootCmd.AddCommand(bisectCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	logging.Init(logging.Config{Level: logging.Level(level), JSONOutput: jsonOut})
}

var checkCmd = &cobra.Command{
	Use:   "check DATABASE",
	Short: "Verify file and roster delta chains against their recorded hashes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")
		log := logging.For("check")

		s, err := store.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer s.Close()

		log.Info().Str("database", args[0]).Msg("verifying delta chains")
		if err := s.VerifyChains(context.Background(), workers); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		fmt.Println("OK")
		return nil
	},
}

func init() {
	checkCmd.Flags().Int("workers", 4, "Parallel hash-verification workers")
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout ROOT",
	Short: "Check out a workspace at ROOT against a database and optional revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		branch, _ := cmd.Flags().GetString("branch")
		keyName, _ := cmd.Flags().GetString("key")
		revisionFlag, _ := cmd.Flags().GetString("revision")

		target := vocab.NullRevisionID
		if revisionFlag != "" {
			rid, err := vocab.ParseRevisionID(revisionFlag)
			if err != nil {
				return fmt.Errorf("parsing --revision: %w", err)
			}
			target = rid
		}

		w, conflicts, err := workspace.Checkout(args[0], dbPath, branch, keyName, target, workspace.UpdateOptions{})
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		defer w.Close()

		reportConflicts(conflicts)
		fmt.Printf("checked out %s\n", w.Root())
		return nil
	},
}

func init() {
	checkoutCmd.Flags().String("db", "", "Database path (relative to ROOT unless absolute)")
	checkoutCmd.Flags().String("branch", "", "Branch name recorded in workspace options")
	checkoutCmd.Flags().String("key", "", "Signing key name recorded in workspace options")
	checkoutCmd.Flags().String("revision", "", "Target revision id (defaults to an empty checkout)")
	checkoutCmd.MarkFlagRequired("db")
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the workspace in the current directory to a target revision",
	RunE: func(cmd *cobra.Command, args []string) error {
		revisionFlag, _ := cmd.Flags().GetString("revision")
		moveConflicts, _ := cmd.Flags().GetBool("move-conflicting-paths")

		target, err := vocab.ParseRevisionID(revisionFlag)
		if err != nil {
			return fmt.Errorf("parsing --revision: %w", err)
		}

		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		conflicts, err := w.Update(target, workspace.UpdateOptions{MoveConflictingPaths: moveConflicts})
		if err != nil {
			reportConflicts(conflicts)
			return fmt.Errorf("update: %w", err)
		}
		reportConflicts(conflicts)
		fmt.Println("updated")
		return nil
	},
}

func init() {
	updateCmd.Flags().String("revision", "", "Target revision id")
	updateCmd.Flags().Bool("move-conflicting-paths", false, "Relocate conflicting on-disk paths under _MTN/resolutions instead of failing")
	updateCmd.MarkFlagRequired("revision")
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit the workspace's pending changes as a new revision",
	RunE: func(cmd *cobra.Command, args []string) error {
		author, _ := cmd.Flags().GetString("author")
		message, _ := cmd.Flags().GetString("message")

		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		rid, err := w.Commit(context.Background(), workspace.CommitOptions{Author: author, Changelog: message})
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		fmt.Printf("committed %s\n", rid)
		return nil
	},
}

func init() {
	commitCmd.Flags().String("author", "", "Author recorded on the commit cert")
	commitCmd.Flags().StringP("message", "m", "", "Changelog message recorded on the commit cert")
}

var mergeCmd = &cobra.Command{
	Use:   "merge REVISION",
	Short: "Three-way merge REVISION into the workspace's checked out revision, committing the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		moveConflicts, _ := cmd.Flags().GetBool("move-conflicting-paths")

		other, err := vocab.ParseRevisionID(args[0])
		if err != nil {
			return fmt.Errorf("parsing revision id: %w", err)
		}

		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		rid, mergeConflicts, fsConflicts, err := w.Merge(other, workspace.UpdateOptions{MoveConflictingPaths: moveConflicts})
		if err != nil {
			return fmt.Errorf("merge: %w", err)
		}
		if len(mergeConflicts) > 0 {
			for _, c := range mergeConflicts {
				fmt.Printf("conflict: %s: %s vs %s\n", c.Kind, c.Our.Path, c.Their.Path)
			}
			return fmt.Errorf("merge: %d unresolved conflict(s)", len(mergeConflicts))
		}
		reportConflicts(fsConflicts)
		fmt.Printf("merged into %s\n", rid)
		return nil
	},
}

func init() {
	mergeCmd.Flags().Bool("move-conflicting-paths", false, "Relocate conflicting on-disk paths under _MTN/resolutions instead of failing")
}

var addCmd = &cobra.Command{
	Use:   "add PATH...",
	Short: "Add paths to the workspace's pending revision",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")

		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.PerformAdditions(repoPaths(args), workspace.AdditionOptions{Recursive: recursive}); err != nil {
			return fmt.Errorf("add: %w", err)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().BoolP("recursive", "R", false, "Recurse into directories")
}

var dropCmd = &cobra.Command{
	Use:   "drop PATH...",
	Short: "Drop paths from the workspace's pending revision",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")

		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		warnings, err := w.PerformDeletions(repoPaths(args), recursive)
		if err != nil {
			return fmt.Errorf("drop: %w", err)
		}
		for _, warn := range warnings {
			fmt.Printf("warning: %s changed on disk since last known state, left in place\n", warn.Path)
		}
		return nil
	},
}

func init() {
	dropCmd.Flags().BoolP("recursive", "R", false, "Drop a directory and everything beneath it")
}

var renameCmd = &cobra.Command{
	Use:   "rename SRC... DST",
	Short: "Rename one path, or move several paths into an existing tracked directory",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		srcs := repoPaths(args[:len(args)-1])
		dst := vocab.NewRepoPath(args[len(args)-1])
		warnings, err := w.PerformRenames(srcs, dst)
		if err != nil {
			return fmt.Errorf("rename: %w", err)
		}
		for _, warn := range warnings {
			fmt.Printf("warning: %s -> %s: %s\n", warn.Src, warn.Dst, warn.Reason)
		}
		return nil
	},
}

var pivotRootCmd = &cobra.Command{
	Use:   "pivot-root NEWROOT PUTOLD",
	Short: "Swap the workspace root with a tracked subdirectory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.PivotRoot(vocab.NewRepoPath(args[0]), vocab.NewRepoPath(args[1])); err != nil {
			return fmt.Errorf("pivot-root: %w", err)
		}
		return nil
	},
}

var bisectCmd = &cobra.Command{
	Use:   "bisect",
	Short: "Binary-search a revision range for the first bad revision",
}

var bisectStartCmd = &cobra.Command{
	Use:   "start REVISION",
	Short: "Start a bisection, tagging REVISION as the search origin",
	Args:  cobra.ExactArgs(1),
	RunE:  bisectTagRunner(workspace.BisectStart),
}

var bisectGoodCmd = &cobra.Command{
	Use:   "good REVISION",
	Short: "Tag REVISION as good",
	Args:  cobra.ExactArgs(1),
	RunE:  bisectTagRunner(workspace.BisectGood),
}

var bisectBadCmd = &cobra.Command{
	Use:   "bad REVISION",
	Short: "Tag REVISION as bad",
	Args:  cobra.ExactArgs(1),
	RunE:  bisectTagRunner(workspace.BisectBad),
}

var bisectSkipCmd = &cobra.Command{
	Use:   "skip REVISION",
	Short: "Exclude REVISION from the search",
	Args:  cobra.ExactArgs(1),
	RunE:  bisectTagRunner(workspace.BisectSkipped),
}

var bisectNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Report the next revision to test, or the first bad revision if the search has converged",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		state, err := w.BisectNext()
		if err != nil {
			return fmt.Errorf("bisect next: %w", err)
		}
		if state.Done {
			fmt.Printf("first bad revision: %s\n", state.FirstBad)
			return nil
		}
		fmt.Printf("next candidate: %s\n", state.Candidate)
		return nil
	},
}

var bisectResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Abandon the in-progress bisection",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.BisectReset(); err != nil {
			return fmt.Errorf("bisect reset: %w", err)
		}
		return nil
	},
}

func init() {
	bisectCmd.AddCommand(bisectStartCmd)
	bisectCmd.AddCommand(bisectGoodCmd)
	bisectCmd.AddCommand(bisectBadCmd)
	bisectCmd.AddCommand(bisectSkipCmd)
	bisectCmd.AddCommand(bisectNextCmd)
	bisectCmd.AddCommand(bisectResetCmd)
}

func bisectTagRunner(tag workspace.BisectTag) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rid, err := vocab.ParseRevisionID(args[0])
		if err != nil {
			return fmt.Errorf("parsing revision id: %w", err)
		}

		w, err := discoverWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.BisectTag(tag, rid); err != nil {
			return fmt.Errorf("bisect %s: %w", tag, err)
		}
		return nil
	}
}

func discoverWorkspace() (*workspace.Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving current directory: %w", err)
	}
	w, err := workspace.Discover(cwd)
	if err != nil {
		return nil, fmt.Errorf("discovering workspace: %w", err)
	}
	return w, nil
}

func repoPaths(args []string) []vocab.RepoPath {
	out := make([]vocab.RepoPath, len(args))
	for i, a := range args {
		out[i] = vocab.NewRepoPath(a)
	}
	return out
}

func reportConflicts(conflicts []workspace.Conflict) {
	for _, c := range conflicts {
		fmt.Printf("conflict: %s: %s\n", c.Kind, c.Path)
	}
}

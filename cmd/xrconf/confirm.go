package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nemith/xrcli"
)

var confirmOpts commitFlags

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Confirm a pending 'commit confirmed'",
	Long: `confirm issues a plain commit on a new session, which makes a previous
'apply --confirmed' permanent before its rollback timer expires.`,
	Args: cobra.NoArgs,
	RunE: runConfirm,
}

func init() {
	confirmOpts.register(confirmCmd.Flags())
	rootCmd.AddCommand(confirmCmd)
}

func runConfirm(cmd *cobra.Command, args []string) error {
	sess, tr, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer tr.Close()

	out, err := sess.Commit(cmd.Context(), confirmOpts.options()...)
	fmt.Fprint(cmd.OutOrStdout(), xrcli.NormalizeLinefeeds(out))

	var commitErr *xrcli.CommitError
	if errors.As(err, &commitErr) {
		fmt.Fprintf(os.Stderr, "\ncommit failed:\n%s\n", xrcli.NormalizeLinefeeds(commitErr.Diagnostic))
		return xrcli.ErrCommitFailed
	}
	return err
}

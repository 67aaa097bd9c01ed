package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var downCmd = &cobra.Command{
	Use:   "down [address]",
	Short: "Tear down the devcontainer session and remove the container",
	Long: `Tear down the session for the current workspace: save and close its
remote documents, reopen the local workspace folder, release the remote
connection, and remove the container.

The session is found through the registry for the current (or --dir)
directory, or from an explicit remote address argument of the form
engine:user@host:directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u := newUI()

		ctrl, _, _, err := newController()
		if err != nil {
			return err
		}

		ref := ""
		if len(args) == 1 {
			ref = args[0]
		} else {
			ref, err = projectDir()
			if err != nil {
				return err
			}
		}

		u.Dim(versionString())

		report, err := ctrl.Down(cmd.Context(), ref)
		if err != nil {
			if report != nil && report.Released {
				u.Warn("session released, but container removal failed; remove it manually")
			}
			return err
		}

		if report.ClosedDocs > 0 {
			u.Keyval("closed", pluralDocs(report.ClosedDocs))
		}
		if report.CleanupErr != nil {
			u.Warn("some documents could not be saved:")
			u.Dim("  " + report.CleanupErr.Error())
		}
		if report.LocalFolder != "" {
			u.Keyval("workspace", report.LocalFolder)
		}
		u.Success("Removed " + report.ContainerID)
		return nil
	},
}

// pluralDocs formats a document count.
func pluralDocs(n int) string {
	if n == 1 {
		return "1 document"
	}
	return fmt.Sprintf("%d documents", n)
}

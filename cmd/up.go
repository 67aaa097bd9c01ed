package cmd

import (
	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Build the devcontainer and bind an editor session to it",
	RunE: func(cmd *cobra.Command, args []string) error {
		u := newUI()

		ctrl, _, _, err := newController()
		if err != nil {
			return err
		}

		dir, err := projectDir()
		if err != nil {
			return err
		}

		u.Dim(versionString())
		u.Header("Starting devcontainer")

		start, err := ctrl.Up(cmd.Context(), dir)
		if err != nil {
			return err
		}

		if start.ConfigName != "" {
			u.Keyval("name", start.ConfigName)
		}
		u.Keyval("workspace", start.Resolve.Root)
		u.Keyval("log", start.LogPath)

		spinner := u.StartSpinner("Waiting for the build to finish")
		outcome := <-start.Done
		spinner.Stop()

		if outcome.Err != nil {
			return outcome.Err
		}

		u.Success("Session bound")
		u.Keyval("container", shortID(outcome.Handle.ContainerID))
		u.Keyval("address", outcome.Handle.Address())
		if outcome.Handle.User != "" {
			u.Keyval("user", outcome.Handle.User)
		}
		if outcome.ClosedDocs > 0 {
			u.Keyval("reclaimed", pluralDocs(outcome.ClosedDocs))
		}
		if outcome.CleanupErr != nil {
			u.Warn("some local documents could not be closed:")
			u.Dim("  " + outcome.CleanupErr.Error())
		}

		return nil
	},
}

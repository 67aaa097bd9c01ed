package cmd

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List registered devcontainer sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		u := newUI()

		ctrl, _, _, err := newController()
		if err != nil {
			return err
		}

		statuses, err := ctrl.Sessions(cmd.Context())
		if err != nil {
			return err
		}

		if len(statuses) == 0 {
			u.Dim("No sessions")
			return nil
		}

		rows := make([][]string, 0, len(statuses))
		for _, s := range statuses {
			rows = append(rows, []string{
				s.Session.WorkspaceID,
				shortID(s.Session.ContainerID),
				u.StateColor(s.State),
				s.Session.Root,
			})
		}
		u.Table([]string{"WORKSPACE", "CONTAINER", "STATE", "ROOT"}, rows)
		return nil
	},
}

// Package devcontainer covers moor's interface to the external devcontainer
// CLI: assembling up invocations and decoding the structured output of the
// build and inspection subprocesses.
package devcontainer

import "slices"

// UpOptions parameterizes an up invocation of the devcontainer CLI.
type UpOptions struct {
	// Command is the CLI invocation prefix, e.g. ["devcontainer"].
	Command []string

	// Engine is the container engine binary passed as --docker-path.
	Engine string

	// WorkspaceFolder is the local workspace root containing the config.
	WorkspaceFolder string

	// DotfilesRepository, when set, is passed as --dotfiles-repository.
	DotfilesRepository string
}

// UpCommand assembles the argv for a devcontainer up invocation. The first
// element is the executable; the rest are its arguments.
func UpCommand(opts UpOptions) []string {
	args := slices.Clone(opts.Command)
	args = append(args,
		"up",
		"--docker-path="+opts.Engine,
		"--workspace-folder="+opts.WorkspaceFolder,
	)
	if opts.DotfilesRepository != "" {
		args = append(args, "--dotfiles-repository="+opts.DotfilesRepository)
	}
	return args
}

// InspectCommand assembles the argv for a container inspection call.
func InspectCommand(engine, containerID string) []string {
	return []string{engine, "container", "inspect", containerID}
}

// RemoveCommand assembles the argv for a forced container removal.
func RemoveCommand(engine, containerID string) []string {
	return []string{engine, "rm", "-f", containerID}
}

package devcontainer

import (
	"encoding/json"
	"fmt"
)

// LabelLocalFolder is the container label the devcontainer CLI sets to the
// local workspace folder the container was created from.
const LabelLocalFolder = "devcontainer.local_folder"

// OutcomeSuccess is the outcome value reported by the devcontainer CLI when
// the container was created and started.
const OutcomeSuccess = "success"

// BuildResult is the structured payload the devcontainer CLI prints on
// stdout when an up invocation finishes. Fields other than Outcome are only
// meaningful when Outcome is "success".
type BuildResult struct {
	Outcome               string `json:"outcome"`
	ContainerID           string `json:"containerId"`
	RemoteUser            string `json:"remoteUser"`
	RemoteWorkspaceFolder string `json:"remoteWorkspaceFolder"`

	// Raw is the original payload, kept for diagnostics.
	Raw []byte `json:"-"`
}

// Success reports whether the build succeeded.
func (r *BuildResult) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// MalformedOutputError is returned when subprocess output cannot be decoded,
// or decodes but is missing a key the caller cannot proceed without.
type MalformedOutputError struct {
	Raw []byte
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed subprocess output: %v (raw: %s)", e.Err, truncate(e.Raw, 200))
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// ParseUpResult decodes the stdout of a devcontainer up invocation. A
// reported success that lacks a container identity is treated as malformed
// rather than defaulted: the caller cannot bind a session to nothing.
func ParseUpResult(out []byte) (*BuildResult, error) {
	var result BuildResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, &MalformedOutputError{Raw: out, Err: err}
	}
	result.Raw = append([]byte(nil), out...)

	if result.Outcome == "" {
		return nil, &MalformedOutputError{Raw: out, Err: fmt.Errorf("missing %q key", "outcome")}
	}
	if result.Success() && result.ContainerID == "" {
		return nil, &MalformedOutputError{Raw: out, Err: fmt.Errorf("outcome is success but %q is missing", "containerId")}
	}
	return &result, nil
}

// inspectRecord mirrors the slice elements of `<engine> container inspect`.
type inspectRecord struct {
	State struct {
		Status string `json:"Status"`
	} `json:"State"`
	Config struct {
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
}

// ParseInspectLabels decodes the stdout of a container inspection call and
// returns the label map of the first reported container.
func ParseInspectLabels(out []byte) (map[string]string, error) {
	var records []inspectRecord
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, &MalformedOutputError{Raw: out, Err: err}
	}
	if len(records) == 0 {
		return nil, &MalformedOutputError{Raw: out, Err: fmt.Errorf("inspection returned no containers")}
	}
	return records[0].Config.Labels, nil
}

// ParseInspectState decodes the stdout of a container inspection call and
// returns the runtime state of the first reported container.
func ParseInspectState(out []byte) (string, error) {
	var records []inspectRecord
	if err := json.Unmarshal(out, &records); err != nil {
		return "", &MalformedOutputError{Raw: out, Err: err}
	}
	if len(records) == 0 {
		return "", &MalformedOutputError{Raw: out, Err: fmt.Errorf("inspection returned no containers")}
	}
	return records[0].State.Status, nil
}

// LocalFolder extracts the devcontainer.local_folder label from an
// inspection label map.
func LocalFolder(labels map[string]string) (string, error) {
	folder, ok := labels[LabelLocalFolder]
	if !ok || folder == "" {
		return "", &MalformedOutputError{Err: fmt.Errorf("missing %q label", LabelLocalFolder)}
	}
	return folder, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

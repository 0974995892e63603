// Package deps reports whether the external binaries capsync shells out to
// are present. Bare command names are resolved through PATH and reported
// with their resolved location, so `status` output shows which binary will
// actually run; absolute paths are checked as given.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names one external binary and how capsync uses it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the evaluated availability of a requirement. Command holds the
// resolved path when the binary was found.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Check resolves the requirement's command and reports the outcome.
func (r Requirement) Check() Status {
	cmd := strings.TrimSpace(r.Command)
	status := Status{
		Name:        r.Name,
		Command:     cmd,
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}

	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

// CheckBinaries evaluates each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, req.Check())
	}
	return results
}

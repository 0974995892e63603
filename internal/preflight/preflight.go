package preflight

import (
	"context"

	"capsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the preflight checks a recording session depends on.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckFreeSpace("Free disk space", cfg.Paths.DataDir, cfg.Session.MinFreeSpaceGiB),
		CheckIngestEndpoint(ctx, cfg.Upload),
	}

	for _, dep := range CheckSystemDeps(cfg) {
		result := Result{Name: dep.Name, Passed: dep.Available, Detail: dep.Command}
		if !dep.Available {
			result.Detail = dep.Detail
		}
		results = append(results, result)
	}
	return results
}

// Package ledger reads the append-only segment manifest that the capture
// engine maintains alongside each track's segment files.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the manifest file the segment muxer appends to inside each
// track directory.
const FileName = "segment_list.txt"

// PathIn returns the ledger path for a track directory.
func PathIn(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load returns the set of distinct segment names recorded in the ledger at
// path. Blank lines are skipped and duplicate entries collapse. A missing or
// unreadable file is an error; callers are expected to prepare the ledger
// before polling it.
func Load(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read segment ledger: %w", err)
	}

	names := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		names[name] = struct{}{}
	}
	return names, nil
}

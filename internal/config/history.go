package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// historySubdir is the directory under a Store's dataDir where versioned
// snapshots are mirrored, matching the teacher's pattern of writing
// versioned artifacts under a dedicated subdirectory of the data directory.
const historySubdir = "config-history"

// writeSnapshot writes v as a timestamped YAML file under
// <dataDir>/config-history/. The filename embeds both the version number
// and the apply time so the directory listing alone documents the fleet's
// configuration timeline.
func writeSnapshot(dataDir string, v Version) error {
	dir := filepath.Join(dataDir, historySubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create history dir: %w", err)
	}

	raw, err := yaml.Marshal(v.Config)
	if err != nil {
		return fmt.Errorf("config: marshal version %d: %w", v.Number, err)
	}

	name := fmt.Sprintf("%04d-%s.yaml", v.Number, v.AppliedAt.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: write snapshot %s: %w", path, err)
	}
	return nil
}

// LoadHistory reads every snapshot file under <dataDir>/config-history/ and
// returns them ordered oldest-first. It is used to repopulate a Store's
// history after an orchestrator restart, since the in-memory history does
// not itself survive a process restart.
func LoadHistory(dataDir string) ([]Version, error) {
	dir := filepath.Join(dataDir, historySubdir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read history dir: %w", err)
	}

	versions := make([]Version, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		v, err := parseSnapshotFile(filepath.Join(dir, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// PruneHistory deletes the oldest on-disk snapshots under
// <dataDir>/config-history/ beyond keep, the in-memory Store's own history
// already bounds its own size but the disk mirror otherwise grows forever.
func PruneHistory(dataDir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	dir := filepath.Join(dataDir, historySubdir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read history dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if len(names) <= keep {
		return nil
	}
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("config: prune snapshot %s: %w", name, err)
		}
	}
	return nil
}

func parseSnapshotFile(path, name string) (Version, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Version{}, fmt.Errorf("config: read snapshot %s: %w", path, err)
	}

	var cfg FleetConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Version{}, fmt.Errorf("config: parse snapshot %s: %w", path, err)
	}

	var number int
	var stamp string
	if _, err := fmt.Sscanf(name, "%04d-%s", &number, &stamp); err != nil {
		return Version{Config: cfg}, nil
	}
	stamp = stamp[:len(stamp)-len(filepath.Ext(stamp))]
	appliedAt, err := time.Parse("20060102T150405Z", stamp)
	if err != nil {
		return Version{Number: number, Config: cfg}, nil
	}

	return Version{Number: number, Config: cfg, AppliedAt: appliedAt}, nil
}

package canvas

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SnapshotPath derives a timestamped snapshot filename next to (or inside
// dir, if non-empty) the final output path. For output "render.png" the
// snapshot is "render-20260823-154501.png".
func SnapshotPath(outputPath, dir string, at time.Time) string {
	base := filepath.Base(outputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := fmt.Sprintf("%s-%s.png", stem, at.Format("20060102-150405"))
	if dir != "" {
		return filepath.Join(dir, name)
	}
	return filepath.Join(filepath.Dir(outputPath), name)
}

// Snapshotter writes intermediate canvas states to disk after each region
// when verbose mode is on. A nil Snapshotter is a no-op.
type Snapshotter struct {
	OutputPath string
	Dir        string
	Now        func() time.Time
}

// Save encodes the current canvas and writes it to a timestamped file.
// Returns the path written.
func (s *Snapshotter) Save(c *Canvas) (string, error) {
	if s == nil {
		return "", nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	path := SnapshotPath(s.OutputPath, s.Dir, now())
	if err := SaveFile(path, c.Image()); err != nil {
		return "", err
	}
	return path, nil
}

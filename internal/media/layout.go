package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Layout is the media directory tree. The snapshots directory holds one
// continuously overwritten current-frame file plus one file per captured
// photo; recordings holds one file per session.
type Layout struct {
	Root          string
	SnapshotsDir  string
	RecordingsDir string
	// SnapshotFile is the continuously overwritten current frame written by
	// the transcoder.
	SnapshotFile string
}

// EnsureLayout creates the media directory tree. Failure here is fatal to
// startup: nothing downstream can function without writable storage.
func EnsureLayout(root string) (Layout, error) {
	l := Layout{
		Root:          root,
		SnapshotsDir:  filepath.Join(root, "snapshots"),
		RecordingsDir: filepath.Join(root, "recordings"),
	}
	l.SnapshotFile = filepath.Join(l.SnapshotsDir, "current.jpg")

	for _, dir := range []string{l.Root, l.SnapshotsDir, l.RecordingsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, fmt.Errorf("create media dir %s: %w", dir, err)
		}
	}
	return l, nil
}

// CapturePhoto copies the current snapshot frame to a timestamped photo file
// and returns its name and capture time.
func (l Layout) CapturePhoto() (string, time.Time, error) {
	src, err := os.Open(l.SnapshotFile)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("open current frame: %w", err)
	}
	defer src.Close()

	ts := time.Now()
	name := fmt.Sprintf("photo_%s.jpg", ts.Format("2006-01-02_15-04-05"))

	dst, err := os.Create(filepath.Join(l.SnapshotsDir, name))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create photo: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", time.Time{}, fmt.Errorf("copy frame: %w", err)
	}
	return name, ts, nil
}

// RecordingPath returns the absolute path of a recording by file name.
func (l Layout) RecordingPath(fileName string) string {
	return filepath.Join(l.RecordingsDir, fileName)
}

package uploader

import (
	"fmt"
	"os"
	"path/filepath"

	"cis-timetable/logger"
)

// Artifact is one rendered file ready for publishing.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// WriteArtifacts stages every artifact as a temp file in dir and only then
// renames them into place. If any step fails, the files already moved are
// rolled back, so dir holds either the complete new set or the previous one.
func WriteArtifacts(dir string, artifacts []Artifact) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	staged := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		tmp, err := stage(dir, a)
		if err != nil {
			removeAll(staged)
			return err
		}
		staged = append(staged, tmp)
	}

	var done []swap
	for i, a := range artifacts {
		s, err := replace(staged[i], filepath.Join(dir, a.Name))
		if err != nil {
			rollback(done)
			removeAll(staged[i:])
			return fmt.Errorf("failed to move %s into place: %w", a.Name, err)
		}
		done = append(done, s)
	}

	for _, s := range done {
		if s.backup != "" {
			os.Remove(s.backup)
		}
		logger.Log.WithField("path", s.dst).Info("Wrote artifact")
	}
	return nil
}

// swap records one replaced file. backup is empty when dst did not exist.
type swap struct {
	dst    string
	backup string
}

// replace renames tmp over dst after keeping a hard link to the old dst,
// so dst is never missing and can be restored.
func replace(tmp, dst string) (swap, error) {
	s := swap{dst: dst}
	if _, err := os.Lstat(dst); err == nil {
		s.backup = tmp + ".prev"
		if err := os.Link(dst, s.backup); err != nil {
			return swap{}, err
		}
	}
	if err := os.Rename(tmp, dst); err != nil {
		if s.backup != "" {
			os.Remove(s.backup)
		}
		return swap{}, err
	}
	return s, nil
}

func rollback(done []swap) {
	for i := len(done) - 1; i >= 0; i-- {
		s := done[i]
		var err error
		if s.backup != "" {
			err = os.Rename(s.backup, s.dst)
		} else {
			err = os.Remove(s.dst)
		}
		if err != nil {
			logger.Log.WithError(err).WithField("path", s.dst).Error("Could not restore previous artifact")
		}
	}
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

func stage(dir string, a Artifact) (string, error) {
	file, err := os.CreateTemp(dir, "."+a.Name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", a.Name, err)
	}
	name := file.Name()

	if _, err := file.Write(a.Data); err != nil {
		file.Close()
		os.Remove(name)
		return "", fmt.Errorf("failed to write %s: %w", a.Name, err)
	}
	if err := file.Chmod(0o644); err != nil {
		file.Close()
		os.Remove(name)
		return "", fmt.Errorf("failed to set mode of %s: %w", a.Name, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to close %s: %w", a.Name, err)
	}
	return name, nil
}

package repository

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/iconidentify/vidgrab/internal/domain"
)

// Suffixes the engine uses for files that are still being written.
var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

// ArtifactStore manages the directory of downloaded media files.
type ArtifactStore struct {
	root string
}

// ArtifactFile is a file found in the store.
type ArtifactFile struct {
	Filename string
	JobID    domain.JobID
	Info     fs.FileInfo
}

// NewArtifactStore creates a store rooted at dir. The directory is not
// created until EnsureDirectory is called.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("artifact store: directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("artifact store: resolve %q: %w", dir, err)
	}
	return &ArtifactStore{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute store directory.
func (s *ArtifactStore) Root() string {
	return s.root
}

// EnsureDirectory creates the store directory if it does not exist.
func (s *ArtifactStore) EnsureDirectory() error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	return nil
}

// OutputTemplate returns the engine output template for a job.
func (s *ArtifactStore) OutputTemplate(jobID domain.JobID) string {
	return filepath.Join(s.root, jobID.String()+".%(ext)s")
}

// LocateByPrefix returns the first complete file whose name starts with the
// job id. Files the engine is still writing are skipped.
func (s *ArtifactStore) LocateByPrefix(ctx context.Context, jobID domain.JobID) (string, error) {
	if jobID == "" {
		return "", domain.ErrArtifactNotFound
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrArtifactNotFound
		}
		return "", fmt.Errorf("read artifact directory: %w", err)
	}

	prefix := jobID.String()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !e.Type().IsRegular() || IsPartial(name) {
			continue
		}
		return name, nil
	}
	return "", domain.ErrArtifactNotFound
}

// Resolve validates filename and returns its absolute path inside the store.
// Anything that is not a plain name of a regular file directly in the store
// yields ErrArtifactNotFound.
func (s *ArtifactStore) Resolve(filename string) (string, fs.FileInfo, error) {
	return resolveIn(s.root, filename)
}

// Open opens an artifact for reading.
func (s *ArtifactStore) Open(filename string) (*os.File, fs.FileInfo, error) {
	path, info, err := s.Resolve(filename)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, domain.ErrArtifactNotFound
		}
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, info, nil
}

// Stat returns file info for an artifact.
func (s *ArtifactStore) Stat(filename string) (fs.FileInfo, error) {
	_, info, err := s.Resolve(filename)
	return info, err
}

// Scan lists every file in the store named after a job id, oldest first.
// Partial files are included so retention can clean them up.
func (s *ArtifactStore) Scan(ctx context.Context) ([]ArtifactFile, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	files := make([]ArtifactFile, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		id, ok := jobIDFromName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, ArtifactFile{Filename: e.Name(), JobID: id, Info: info})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Info.ModTime().Before(files[j].Info.ModTime())
	})
	return files, nil
}

// Delete removes an artifact.
func (s *ArtifactStore) Delete(filename string) error {
	path, _, err := s.Resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrArtifactNotFound
		}
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// resolveIn is the traversal guard shared by the artifact store and the
// static media directory.
func resolveIn(root, filename string) (string, fs.FileInfo, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, "/\\\x00") ||
		filepath.Base(filename) != filename {
		return "", nil, domain.ErrArtifactNotFound
	}

	path := filepath.Join(root, filename)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel != filename || strings.HasPrefix(rel, "..") {
		return "", nil, domain.ErrArtifactNotFound
	}

	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil, domain.ErrArtifactNotFound
	}
	return path, info, nil
}

// ResolveStatic applies the artifact traversal guard to a file in an
// arbitrary directory.
func ResolveStatic(root, filename string) (string, fs.FileInfo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", nil, domain.ErrArtifactNotFound
	}
	return resolveIn(filepath.Clean(abs), filename)
}

// IsPartial reports whether name is a file the engine is still writing.
func IsPartial(name string) bool {
	for _, suf := range partialSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// jobIDFromName extracts the UUID stem of an artifact filename.
func jobIDFromName(name string) (domain.JobID, bool) {
	const uuidLen = 36
	if len(name) < uuidLen {
		return "", false
	}
	stem := name[:uuidLen]
	if _, err := uuid.Parse(stem); err != nil {
		return "", false
	}
	if len(name) > uuidLen && name[uuidLen] != '.' {
		return "", false
	}
	return domain.JobID(stem), true
}

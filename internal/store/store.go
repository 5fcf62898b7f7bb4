// Package store provides read access to the files that dflineage publishes
// lineage for: the lineage settings, type definitions, and the datasets
// themselves. Files are read from the local disk or from a Git repository.
package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dnswlt/dflineage/internal/gitclient"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	ErrNoSuchRef = errors.New("no such ref")
)

// Source is the abstraction over different types of storage layers,
// in particular local disk (non-versioned) and a Git repo (read-only).
type Source interface {
	// Store returns a handle to a store at the given ref.
	// For non-versioned disk-based stores, ref must be "".
	Store(ref string) (Store, error)
}

// Store is a minimal abstraction to list and read files.
// It is the common interface for disk-based and git-repo-based stores.
//
// Paths are interpreted relative to the store's root directory. A leading "/"
// is allowed, so "/datasets/flights.csv" and "datasets/flights.csv" name the same file.
// Reading a file that does not exist returns an error wrapping fs.ErrNotExist.
type Store interface {
	// ListFiles lists all files in dir (recursively).
	// The resulting paths are relative to the store's root directory,
	// so they can be passed to ReadFile and Open unmodified.
	ListFiles(dir string) ([]string, error)
	// ReadFile reads the contents of path from the store.
	ReadFile(path string) ([]byte, error)
	// Open returns a reader for the contents of path. The caller must close it.
	Open(path string) (io.ReadCloser, error)
}

// DiskStore is an implementation of Source and Store that reads files from the local file system.
type DiskStore struct {
	rootDir string
}

var _ Source = (*DiskStore)(nil)
var _ Store = (*DiskStore)(nil)

func NewDiskStore(rootDir string) *DiskStore {
	return &DiskStore{
		rootDir: rootDir,
	}
}

func (d *DiskStore) Store(ref string) (Store, error) {
	if ref != "" {
		return nil, fmt.Errorf("invalid ref %q: %w", ref, ErrNoSuchRef)
	}
	return d, nil
}

func (d *DiskStore) ListFiles(dir string) ([]string, error) {
	startDir, err := resolveRelPath(d.rootDir, dir)
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(startDir, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.rootDir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func resolveRelPath(root, subpath string) (string, error) {
	fullPath := filepath.Join(root, filepath.FromSlash(subpath))

	rel, err := filepath.Rel(root, fullPath)
	if err != nil {
		return "", fmt.Errorf("not a relative path: %v", err) // e.g. paths on different volumes
	}
	// A relative path escaping the root starts with "..".
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes root directory", subpath)
	}

	return fullPath, nil
}

func (d *DiskStore) ReadFile(path string) ([]byte, error) {
	fullPath, err := resolveRelPath(d.rootDir, path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}

func (d *DiskStore) Open(path string) (io.ReadCloser, error) {
	fullPath, err := resolveRelPath(d.rootDir, path)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

// GitSource is an implementation of Source that reads from a remote Git repository.
type GitSource struct {
	client     *gitclient.Client
	defaultRef string   // ref to use if the empty ref ("") is requested
	rootDir    string   // subdirectory of the repository that acts as the store's root
	refs       []string // cached list of available references
}

// gitStore is a "view" over a single revision in a GitSource.
type gitStore struct {
	client  *gitclient.Client
	ref     string
	rootDir string
}

var _ Source = (*GitSource)(nil)
var _ Store = (*gitStore)(nil)

// NewGitSource returns a source for the files below rootDir in the repository of client.
// An empty rootDir denotes the repository root.
func NewGitSource(client *gitclient.Client, defaultRef, rootDir string) *GitSource {
	return &GitSource{
		client:     client,
		defaultRef: defaultRef,
		rootDir:    strings.Trim(rootDir, "/"),
	}
}

func (g *GitSource) Store(ref string) (Store, error) {
	if ref == "" {
		ref = g.defaultRef
	}
	refs, err := g.ListReferences()
	if err != nil {
		return nil, fmt.Errorf("cannot list references: %v", err)
	}
	if !slices.Contains(refs, ref) {
		return nil, ErrNoSuchRef
	}
	return &gitStore{
		client:  g.client,
		ref:     ref,
		rootDir: g.rootDir,
	}, nil
}

func (g *GitSource) ListReferences() ([]string, error) {
	if g.refs != nil {
		return g.refs, nil
	}
	refs, err := g.client.ListReferences()
	if err != nil {
		return nil, err
	}
	slices.Sort(refs)
	g.refs = refs
	return refs, nil
}

// repoPath returns the path of p relative to the repository root.
// Git paths always use "/", so filepath must not be used here.
func (g *gitStore) repoPath(p string) string {
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	return path.Join(g.rootDir, clean)
}

func (g *gitStore) ListFiles(dir string) ([]string, error) {
	files, err := g.client.ListFilesRecursive(g.ref, g.repoPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %v", err)
	}
	relDir := strings.TrimPrefix(path.Clean("/"+dir), "/")
	result := make([]string, len(files))
	for i, f := range files {
		result[i] = path.Join(relDir, f)
	}
	return result, nil
}

func (g *gitStore) ReadFile(p string) ([]byte, error) {
	r, err := g.Open(p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *gitStore) Open(p string) (io.ReadCloser, error) {
	r, err := g.client.Open(g.ref, g.repoPath(p))
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("%s at %s: %w", p, g.ref, fs.ErrNotExist)
	}
	return r, err
}

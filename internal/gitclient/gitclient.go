// Package gitclient reads files at arbitrary revisions of a remote Git
// repository without checking out a worktree.
package gitclient

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Auth holds Basic Auth credentials.
// For access tokens, most hosting services accept any non-empty Username
// (e.g. "x-token-auth") and the token as Password.
type Auth struct {
	Username string
	Password string // or Token
}

// Client holds a clone of the repository in memory.
type Client struct {
	mu   sync.Mutex
	repo *git.Repository
}

func (a *Auth) basicAuth() *http.BasicAuth {
	if a == nil {
		return nil
	}
	return &http.BasicAuth{
		Username: a.Username,
		Password: a.Password,
	}
}

// New clones the repository at url into memory.
// auth may be nil for repositories that do not require authentication.
func New(url string, auth *Auth) (*Client, error) {
	cloneOpts := &git.CloneOptions{
		URL:        url,
		NoCheckout: true, // Only the object database is needed.
	}
	if ba := auth.basicAuth(); ba != nil {
		cloneOpts.Auth = ba
	}

	repo, err := git.Clone(memory.NewStorage(), nil, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", url, err)
	}

	return &Client{repo: repo}, nil
}

// DefaultBranch returns the short name of the branch that HEAD of the remote pointed to when cloning.
func (c *Client) DefaultBranch() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	head, err := c.repo.Head()
	if err != nil {
		return "", fmt.Errorf("cannot resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is not a branch: %s", head.Name())
	}
	return head.Name().Short(), nil
}

// ListReferences returns the short names of all branches and tags.
// Remote branches are listed without their remote prefix.
func (c *Client) ListReferences() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	refs, err := c.repo.References()
	if err != nil {
		return nil, err
	}

	refMap := make(map[string]bool)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsTag(), name.IsBranch():
			refMap[name.Short()] = true
		case name.IsRemote():
			// refs/remotes/origin/main => main
			short := name.Short()
			if i := strings.Index(short, "/"); i != -1 && short[i+1:] != "HEAD" {
				refMap[short[i+1:]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	references := make([]string, 0, len(refMap))
	for v := range refMap {
		references = append(references, v)
	}
	return references, nil
}

func (c *Client) resolveRevision(revision string) (*plumbing.Hash, error) {
	hash, err := c.repo.ResolveRevision(plumbing.Revision(revision))
	if err == nil {
		return hash, nil
	}
	// Branches of a clone only exist as remote references.
	if !strings.HasPrefix(revision, "refs/") {
		if hash, err := c.repo.ResolveRevision(plumbing.Revision("origin/" + revision)); err == nil {
			return hash, nil
		}
	}
	return nil, fmt.Errorf("revision %q not found: %w", revision, err)
}

func (c *Client) tree(revision string) (*object.Tree, error) {
	hash, err := c.resolveRevision(revision)
	if err != nil {
		return nil, err
	}
	commit, err := c.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("commit lookup failed: %w", err)
	}
	return commit.Tree()
}

// Open returns a reader for the contents of filePath at revision.
// The caller must close the reader.
func (c *Client) Open(revision, filePath string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tree, err := c.tree(revision)
	if err != nil {
		return nil, err
	}
	file, err := tree.File(strings.TrimPrefix(filePath, "/"))
	if err != nil {
		return nil, err // object.ErrFileNotFound if missing
	}
	return file.Reader()
}

// ReadFile returns the contents of filePath at revision.
func (c *Client) ReadFile(revision, filePath string) ([]byte, error) {
	r, err := c.Open(revision, filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ListFilesRecursive lists all files below dirPath at revision.
// The returned paths are relative to dirPath.
func (c *Client) ListFilesRecursive(revision, dirPath string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rootTree, err := c.tree(revision)
	if err != nil {
		return nil, err
	}

	targetTree := rootTree
	if dirPath != "" && dirPath != "." && dirPath != "/" {
		targetTree, err = rootTree.Tree(strings.Trim(dirPath, "/"))
		if err != nil {
			return nil, fmt.Errorf("directory %q not found: %w", dirPath, err)
		}
	}

	var filePaths []string
	files := targetTree.Files()
	defer files.Close()
	err = files.ForEach(func(f *object.File) error {
		filePaths = append(filePaths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iteration failed: %w", err)
	}
	return filePaths, nil
}

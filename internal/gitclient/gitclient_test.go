package gitclient

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"
)

// createTestRepo initializes a git repo in a temp dir with some dummy content
// and returns the path to that directory.
// Structure:
// v1.0.0 (tag)
//   - lineage.yml ("v1 content")
//
// v2.0.0 (tag)
//   - lineage.yml ("v2 content")
//   - datasets/flights.csv ("date,delay\n")
//
// feature/new-dataset (branch)
//   - branch-file.txt ("branch content")
func createTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("Failed to init git repo: %v", err)
	}
	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}

	writeFile := func(name, content string) {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	commit := func(msg string) {
		if _, err := w.Add("."); err != nil {
			t.Fatalf("Failed to add files: %v", err)
		}
		_, err := w.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{
				Name:  "Test User",
				Email: "test@example.com",
				When:  time.Now(),
			},
		})
		if err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}
	}
	tag := func(name string) {
		head, err := repo.Head()
		if err != nil {
			t.Fatalf("Failed to get HEAD: %v", err)
		}
		if _, err := repo.CreateTag(name, head.Hash(), nil); err != nil {
			t.Fatalf("Failed to create tag %s: %v", name, err)
		}
	}

	writeFile("lineage.yml", "v1 content")
	commit("Initial commit")
	tag("v1.0.0")

	writeFile("lineage.yml", "v2 content")
	writeFile("datasets/flights.csv", "date,delay\n")
	commit("Second commit")
	tag("v2.0.0")

	err = w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("feature/new-dataset"),
		Create: true,
	})
	if err != nil {
		t.Fatalf("Failed to checkout branch: %v", err)
	}
	writeFile("branch-file.txt", "branch content")
	commit("Branch commit")

	// master must be HEAD when cloned.
	err = w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("master"),
	})
	if err != nil {
		t.Fatalf("Failed to checkout master: %v", err)
	}

	return dir
}

func TestClient(t *testing.T) {
	repoPath := createTestRepo(t)

	client, err := New(repoPath, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("ListReferences", func(t *testing.T) {
		refs, err := client.ListReferences()
		if err != nil {
			t.Fatalf("ListReferences failed: %v", err)
		}
		slices.Sort(refs)
		want := []string{"feature/new-dataset", "master", "v1.0.0", "v2.0.0"}
		if diff := cmp.Diff(want, refs); diff != "" {
			t.Errorf("ListReferences mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("DefaultBranch", func(t *testing.T) {
		branch, err := client.DefaultBranch()
		if err != nil {
			t.Fatalf("DefaultBranch failed: %v", err)
		}
		if branch != "master" {
			t.Errorf("DefaultBranch() = %q, want %q", branch, "master")
		}
	})

	readTests := []struct {
		revision string
		path     string
		want     string
	}{
		{"v1.0.0", "lineage.yml", "v1 content"},
		{"v2.0.0", "lineage.yml", "v2 content"},
		{"v2.0.0", "datasets/flights.csv", "date,delay\n"},
		{"v2.0.0", "/datasets/flights.csv", "date,delay\n"},
		{"master", "lineage.yml", "v2 content"},
		{"feature/new-dataset", "branch-file.txt", "branch content"},
	}
	for _, tc := range readTests {
		t.Run("ReadFile "+tc.revision+":"+tc.path, func(t *testing.T) {
			content, err := client.ReadFile(tc.revision, tc.path)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if string(content) != tc.want {
				t.Errorf("ReadFile() = %q, want %q", string(content), tc.want)
			}
		})
	}

	t.Run("ReadFile missing", func(t *testing.T) {
		if _, err := client.ReadFile("v1.0.0", "datasets/flights.csv"); err == nil {
			t.Error("ReadFile succeeded for a file that does not exist at v1.0.0")
		}
		if _, err := client.ReadFile("v9.9.9", "lineage.yml"); err == nil {
			t.Error("ReadFile succeeded for an unknown revision")
		}
	})

	t.Run("Open", func(t *testing.T) {
		r, err := client.Open("v2.0.0", "datasets/flights.csv")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer r.Close()
		content, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if string(content) != "date,delay\n" {
			t.Errorf("Open() content = %q", string(content))
		}
	})

	t.Run("ListFilesRecursive", func(t *testing.T) {
		files, err := client.ListFilesRecursive("v2.0.0", "")
		if err != nil {
			t.Fatalf("ListFilesRecursive failed: %v", err)
		}
		slices.Sort(files)
		want := []string{"datasets/flights.csv", "lineage.yml"}
		if diff := cmp.Diff(want, files); diff != "" {
			t.Errorf("ListFilesRecursive mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ListFilesRecursive Subdir", func(t *testing.T) {
		files, err := client.ListFilesRecursive("v2.0.0", "datasets")
		if err != nil {
			t.Fatalf("ListFilesRecursive failed: %v", err)
		}
		want := []string{"flights.csv"}
		if diff := cmp.Diff(want, files); diff != "" {
			t.Errorf("ListFilesRecursive (subdir) mismatch (-want +got):\n%s", diff)
		}
	})
}

// Command gitclienttest lists the references of a git repository and the
// schemas of the CSV datasets at one revision. It is a diagnostic tool for
// checking git access before running dflineage with -git-url.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dnswlt/dflineage/internal/dataset"
	"github.com/dnswlt/dflineage/internal/gitclient"
	"github.com/dnswlt/dflineage/internal/store"
)

func main() {
	var (
		url      string
		username string
		password string
		ref      string
		dir      string
	)

	flag.StringVar(&url, "url", "", "Repository URL to inspect")
	flag.StringVar(&username, "user", "", "Username for authentication")
	flag.StringVar(&password, "pass", "", "Password or Token for authentication")
	flag.StringVar(&ref, "ref", "", "Reference (branch or tag) to read datasets from. Defaults to the default branch.")
	flag.StringVar(&dir, "dir", ".", "Directory to search for *.csv datasets")
	flag.Parse()

	if url == "" {
		fmt.Println("Error: -url is required")
		flag.Usage()
		os.Exit(1)
	}

	var auth *gitclient.Auth
	if username != "" || password != "" {
		auth = &gitclient.Auth{
			Username: username,
			Password: password,
		}
	}

	client, err := gitclient.New(url, auth)
	if err != nil {
		log.Fatalf("Failed to clone %q: %v", url, err)
	}
	if ref == "" {
		ref, err = client.DefaultBranch()
		if err != nil {
			log.Fatalf("No -ref specified and no default branch found: %v", err)
		}
	}

	src := store.NewGitSource(client, ref, "")
	refs, err := src.ListReferences()
	if err != nil {
		log.Fatalf("Failed to list references: %v", err)
	}
	fmt.Printf("Branches and tags in %s:\n", url)
	for _, v := range refs {
		fmt.Printf("  %s\n", v)
	}

	st, err := src.Store(ref)
	if err != nil {
		log.Fatalf("Cannot read revision %q: %v", ref, err)
	}
	files, err := st.ListFiles(dir)
	if err != nil {
		log.Fatalf("Failed to list files for revision %q: %v", ref, err)
	}
	introspector, err := dataset.NewCSVIntrospector(st, dataset.DefaultOptions())
	if err != nil {
		log.Fatalf("Cannot create introspector: %v", err)
	}

	fmt.Printf("\nDatasets at revision %q:\n", ref)
	for _, f := range files {
		if !strings.HasSuffix(strings.ToLower(f), ".csv") {
			continue
		}
		columns, err := introspector.Columns(context.Background(), f)
		if err != nil {
			fmt.Printf("  %s: %v\n", f, err)
			continue
		}
		fmt.Printf("  %s\n", f)
		for _, c := range columns {
			fmt.Printf("    %s\t%s\n", c.Name, c.Type)
		}
	}
}

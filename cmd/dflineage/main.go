package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dnswlt/dflineage/internal/api"
	"github.com/dnswlt/dflineage/internal/config"
	"github.com/dnswlt/dflineage/internal/gitclient"
	"github.com/dnswlt/dflineage/internal/publisher"
	"github.com/dnswlt/dflineage/internal/store"
	"github.com/dnswlt/dflineage/internal/typedefs"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
)

var (
	// Version is the application version.
	// It is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
)

const redacted = "<redacted>"

func gitClientAuthFromEnv() *gitclient.Auth {
	user := os.Getenv("DFLINEAGE_GIT_USER")
	if user == "" {
		return nil
	}
	pass := os.Getenv("DFLINEAGE_GIT_PASSWORD")
	return &gitclient.Auth{
		Username: user,
		Password: pass,
	}
}

// Options contains program options that can be set via command-line flags or environment variables.
// Each flag can be set by the environment variable of the same name in upper snake case,
// e.g. -client-secret by CLIENT_SECRET.
type Options struct {
	// Catalog
	EndpointURL  string
	CatalogName  string
	TenantID     string
	ClientID     string
	ClientSecret string
	AuthorityURL string
	Username     string
	Password     string
	HTTPTimeout  time.Duration
	// Data store
	RootDir string
	GitURL  string
	GitRef  string
	// Lineage
	LineageConfig string
	TypedefsFile  string
	DatasetPath   string
	JobPath       string
	// Behaviour
	DryRun       bool
	SkipTypedefs bool
}

// String returns the options with secrets redacted, for logging.
func (o Options) String() string {
	if o.ClientSecret != "" {
		o.ClientSecret = redacted
	}
	if o.Password != "" {
		o.Password = redacted
	}
	type plain Options // avoids recursion into String
	return fmt.Sprintf("%+v", plain(o))
}

func main() {
	if len(os.Args) < 2 {
		runPublish(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "publish":
		runPublish(os.Args[2:])
	case "typedefs":
		runTypedefs(os.Args[2:])
	case "schema":
		runSchema(os.Args[2:])
	case "version":
		fmt.Println(Version)
	default:
		// Also default to publish if the argument looks like a flag
		if strings.HasPrefix(os.Args[1], "-") {
			runPublish(os.Args[1:])
			return
		}
		fmt.Fprintf(os.Stderr, "Unknown command %q. Available commands: publish, typedefs, schema, version\n", os.Args[1])
		os.Exit(1)
	}
}

func addStoreFlags(fs *flag.FlagSet, opts *Options) {
	fs.StringVar(&opts.RootDir, "root-dir", "/", "Root directory of the local data store")
	fs.StringVar(&opts.GitURL, "git-url", "", "URL of a git repository to use as the data store instead of -root-dir")
	fs.StringVar(&opts.GitRef, "git-ref", "", "Git ref (branch or tag) to read from. Defaults to the default branch.")
	fs.StringVar(&opts.LineageConfig, "lineage-config", "", "Path of the lineage settings YAML file in the data store. If empty, built-in defaults are used.")
}

func addCatalogFlags(fs *flag.FlagSet, opts *Options) {
	fs.StringVar(&opts.EndpointURL, "endpoint-url", "", "Atlas v2 API endpoint URL")
	fs.StringVar(&opts.CatalogName, "catalog-name", "", "Name of the Purview account. Used to derive the endpoint URL if -endpoint-url is empty.")
	fs.StringVar(&opts.TenantID, "tenant-id", "", "Azure AD tenant ID of the service principal")
	fs.StringVar(&opts.ClientID, "client-id", "", "Client ID of the service principal")
	fs.StringVar(&opts.ClientSecret, "client-secret", "", "Client secret of the service principal")
	fs.StringVar(&opts.AuthorityURL, "authority-url", api.DefaultAuthorityURL, "Azure AD authority URL")
	fs.StringVar(&opts.Username, "atlas-username", "", "User name for basic auth against Apache Atlas. Ignored if any service principal flag is set.")
	fs.StringVar(&opts.Password, "atlas-password", "", "Password for basic auth against Apache Atlas")
	fs.DurationVar(&opts.HTTPTimeout, "http-timeout", 60*time.Second, "Timeout for each catalog request (0 means no timeout)")
	fs.StringVar(&opts.TypedefsFile, "typedefs", "", "Path of a type definitions YAML file in the data store. If empty, the lineage settings or built-in definitions are used.")
}

func addDatasetFlags(fs *flag.FlagSet, opts *Options) {
	fs.StringVar(&opts.DatasetPath, "dataset", config.DefaultDatasetPath, "Path of the dataset in the data store")
	fs.StringVar(&opts.JobPath, "job-path", "/Shared/dflineage", "Path of the job (e.g. notebook) that reads the dataset")
}

// envFileArg returns the value of the -env-file flag in args, or def if it is absent.
func envFileArg(args []string, def string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "env-file" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return def
}

// parseFlags loads the dotenv file and then parses args into fs,
// falling back to environment variables for flags not given in args.
// Variables from the dotenv file never override the existing environment.
func parseFlags(fs *flag.FlagSet, args []string) {
	fs.String("env-file", ".env", "Path of a dotenv file with environment variables")
	if path := envFileArg(args, ".env"); path != "" {
		err := godotenv.Load(path)
		switch {
		case err == nil:
			log.Printf("Loaded environment from %s", path)
		case !errors.Is(err, os.ErrNotExist):
			log.Fatalf("Failed to load env file %s: %v", path, err)
		}
	}

	if err := ff.Parse(fs, args, ff.WithEnvVars()); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		os.Exit(1)
	}
}

func openStore(opts Options) store.Store {
	var src store.Source
	ref := opts.GitRef
	if opts.GitURL != "" {
		auth := gitClientAuthFromEnv()
		log.Printf("Retrieving data store from git URL %s", opts.GitURL)
		client, err := gitclient.New(opts.GitURL, auth)
		if err != nil {
			log.Fatalf("Failed to retrieve git repo: %v", err)
		}
		if ref == "" {
			ref, err = client.DefaultBranch()
			if err != nil {
				log.Fatalf("No git-ref specified and no default branch found: %v", err)
			}
		}
		log.Printf("Using git ref %q", ref)
		src = store.NewGitSource(client, ref, "")
	} else if opts.RootDir != "" {
		log.Printf("Using local data store at %s", opts.RootDir)
		src = store.NewDiskStore(opts.RootDir)
		ref = ""
	} else {
		log.Fatalf("Neither -root-dir nor -git-url specified")
	}
	st, err := src.Store(ref)
	if err != nil {
		log.Fatalf("Cannot open data store at ref %q: %v", ref, err)
	}
	return st
}

func loadSettings(st store.Store, opts Options) *config.Bundle {
	if opts.LineageConfig == "" {
		return config.Default()
	}
	settings, err := config.Load(st, opts.LineageConfig)
	if err != nil {
		log.Fatalf("Failed to load lineage settings: %v", err)
	}
	log.Printf("Loaded lineage settings from %s", opts.LineageConfig)
	return settings
}

func loadTypedefs(st store.Store, opts Options, settings *config.Bundle) *typedefs.Bundle {
	path := opts.TypedefsFile
	if path == "" {
		path = settings.Typedefs
	}
	if path == "" {
		return typedefs.Default()
	}
	defs, err := typedefs.Load(st, path)
	if err != nil {
		log.Fatalf("Failed to load type definitions: %v", err)
	}
	log.Printf("Loaded type definitions %v from %s", defs.Names(), path)
	return defs
}

func endpointURL(opts Options) string {
	if opts.EndpointURL != "" {
		return opts.EndpointURL
	}
	if opts.CatalogName != "" {
		return config.CatalogEndpoint(opts.CatalogName)
	}
	log.Fatalf("Neither -endpoint-url (ENDPOINT_URL) nor -catalog-name specified")
	return ""
}

func (o Options) credentials() api.Credentials {
	return api.Credentials{
		TenantID:     o.TenantID,
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		AuthorityURL: o.AuthorityURL,
		Username:     o.Username,
		Password:     o.Password,
	}
}

func newCatalogClient(ctx context.Context, opts Options) *api.Client {
	endpoint := endpointURL(opts)
	auth, err := api.NewAuthenticator(opts.credentials())
	if err != nil {
		log.Fatalf("Cannot authenticate: %v", err)
	}
	client, err := api.NewClient(ctx, api.ClientOptions{
		Endpoint: endpoint,
		Auth:     auth,
		Timeout:  opts.HTTPTimeout,
	})
	if err != nil {
		log.Fatalf("Cannot create catalog client: %v", err)
	}
	log.Printf("Using catalog at %s", client.Endpoint())
	return client
}

func fatalf(format string, err error) {
	if errors.Is(err, api.ErrAuthentication) {
		log.Fatalf(format+" (check TENANT_ID, CLIENT_ID and CLIENT_SECRET, or ATLAS_USERNAME and ATLAS_PASSWORD)", err)
	}
	log.Fatalf(format, err)
}

func runPublish(args []string) {
	var opts Options
	fs := flag.NewFlagSet("dflineage publish", flag.ExitOnError)
	addStoreFlags(fs, &opts)
	addCatalogFlags(fs, &opts)
	addDatasetFlags(fs, &opts)
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print the type definitions and entities as JSON instead of uploading them")
	fs.BoolVar(&opts.SkipTypedefs, "skip-typedefs", false, "Do not upload type definitions")
	parseFlags(fs, args)
	log.Printf("Using config from flags/env vars: %s", opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st := openStore(opts)
	settings := loadSettings(st, opts)
	defs := loadTypedefs(st, opts, settings)
	introspector, err := settings.NewIntrospector(st)
	if err != nil {
		log.Fatalf("Invalid introspector configuration: %v", err)
	}
	req := publisher.Request{
		DatasetPath:  opts.DatasetPath,
		JobPath:      opts.JobPath,
		SkipTypedefs: opts.SkipTypedefs,
	}

	if opts.DryRun {
		plan, err := publisher.New(nil, settings, defs, introspector).Plan(ctx, req)
		if err != nil {
			log.Fatalf("Dry run failed: %v", err)
		}
		if err := plan.Write(os.Stdout); err != nil {
			log.Fatalf("Failed to write dry run output: %v", err)
		}
		return
	}

	client := newCatalogClient(ctx, opts)
	result, err := publisher.New(client, settings, defs, introspector).Run(ctx, req)
	if err != nil {
		fatalf("Failed to publish lineage: %v", err)
	}
	log.Printf("Published lineage of %s (%d columns) read by %s",
		result.Batch.DataFrame.QualifiedName, len(result.Batch.Columns), result.Batch.Process.QualifiedName)
	qnames := result.Batch.GUIDs()
	for placeholder, guid := range result.GuidAssignments {
		log.Printf("  %s %s => %s", placeholder, qnames[placeholder], guid)
	}
}

func runTypedefs(args []string) {
	var opts Options
	fs := flag.NewFlagSet("dflineage typedefs", flag.ExitOnError)
	addStoreFlags(fs, &opts)
	addCatalogFlags(fs, &opts)
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Validate and print the type definitions as JSON instead of uploading them")
	parseFlags(fs, args)
	log.Printf("Using config from flags/env vars: %s", opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st := openStore(opts)
	settings := loadSettings(st, opts)
	defs := loadTypedefs(st, opts, settings)

	if opts.DryRun {
		plan := &publisher.DryRun{Typedefs: defs.ToAPI(), Entities: []*api.Entity{}}
		if err := plan.Write(os.Stdout); err != nil {
			log.Fatalf("Failed to write type definitions: %v", err)
		}
		return
	}

	client := newCatalogClient(ctx, opts)
	ack, err := publisher.New(client, settings, defs, nil).PublishTypedefs(ctx)
	if err != nil {
		fatalf("Failed to upload type definitions: %v", err)
	}
	log.Printf("Catalog acknowledged type definitions %v", ack.Names())
}

func runSchema(args []string) {
	var opts Options
	fs := flag.NewFlagSet("dflineage schema", flag.ExitOnError)
	addStoreFlags(fs, &opts)
	addDatasetFlags(fs, &opts)
	parseFlags(fs, args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st := openStore(opts)
	settings := loadSettings(st, opts)
	introspector, err := settings.NewIntrospector(st)
	if err != nil {
		log.Fatalf("Invalid introspector configuration: %v", err)
	}
	columns, err := publisher.New(nil, settings, typedefs.Default(), introspector).Columns(ctx, opts.DatasetPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	for _, c := range columns {
		fmt.Printf("%s\t%s\n", c.Name, c.Type)
	}
}

// Package cli implements the dietool command line: credential hashing,
// sealing of private dies, bulk import into the SQL store, export of the
// visible set and printing comparison layouts.
package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/diecompare/internal/config"
	"github.com/atinyakov/diecompare/internal/db"
	"github.com/atinyakov/diecompare/internal/feed"
	"github.com/atinyakov/diecompare/internal/logger"
	"github.com/atinyakov/diecompare/internal/repository"
	"github.com/atinyakov/diecompare/internal/seal"
	"github.com/atinyakov/diecompare/internal/service"
	"github.com/atinyakov/diecompare/internal/store"
	"github.com/atinyakov/diecompare/internal/visibility"
)

// PassphraseEnv is consulted when --passphrase is not given.
const PassphraseEnv = "DIECOMPARE_PASSPHRASE"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Public     string
	Private    string
	DSN        string
	Driver     string
	Passphrase string
	ScryptN    int
	Verbose    bool

	getenv func(string) string
}

// BuildInfo is printed by the version command.
type BuildInfo struct {
	Version   string
	BuildDate string
}

// NewRootCommand creates the root command for dietool.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &RootOptions{getenv: os.Getenv}

	cmd := &cobra.Command{
		Use:   "dietool",
		Short: "dietool - DieCompare catalog tooling",
		Long:  "Maintain DieCompare feeds and databases: hash passwords, seal private dies, import, export and compare.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Passphrase == "" {
				opts.Passphrase = opts.getenv(PassphraseEnv)
			}
		},
		SilenceUsage: true,
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.Public, "public", "", "public feed path or URL")
	flags.StringVar(&opts.Private, "private", "", "private feed path or URL")
	flags.StringVar(&opts.DSN, "dsn", "", "database DSN; used instead of the feeds when set")
	flags.StringVar(&opts.Driver, "driver", config.DriverPostgres, "database driver (postgres|sqlite)")
	flags.StringVarP(&opts.Passphrase, "passphrase", "p", "", "passphrase for private dies (env "+PassphraseEnv+")")
	flags.IntVar(&opts.ScryptN, "scrypt-n", 1<<15, "scrypt cost for sealing")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")

	// Add subcommands
	cmd.AddCommand(NewHashPasswordCommand())
	cmd.AddCommand(NewSealCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewLayoutCommand(opts))
	cmd.AddCommand(NewCertCommand())
	cmd.AddCommand(NewVersionCommand(info))

	return cmd
}

func (o *RootOptions) logger() *zap.Logger {
	if !o.Verbose {
		return zap.NewNop()
	}
	l := logger.New()
	if err := l.Init("debug"); err != nil {
		return zap.NewNop()
	}
	return l.Log
}

func (o *RootOptions) auth() visibility.AuthState {
	if o.Passphrase == "" {
		return visibility.Anonymous()
	}
	return visibility.Unlocked(o.Passphrase)
}

func (o *RootOptions) sealer() *seal.AESGCM {
	return seal.New(o.ScryptN)
}

func (o *RootOptions) catalog(repo service.DieRepository, log *zap.Logger) *service.CatalogService {
	sealer := o.sealer()
	return service.NewCatalogService(repo, visibility.NewResolver(sealer, log), sealer, log)
}

func (o *RootOptions) openDB() (*repository.SQLDieRepository, func(), error) {
	if o.DSN == "" {
		return nil, nil, errors.New("--dsn is required")
	}
	sqlDB, err := db.Open(o.Driver, o.DSN)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewSQLDieRepository(sqlDB), func() { _ = sqlDB.Close() }, nil
}

// openRepository reads from the database when --dsn is set, otherwise it
// loads the feeds into memory. Any feed failure is an error.
func (o *RootOptions) openRepository(ctx context.Context, log *zap.Logger) (service.DieRepository, func(), error) {
	if o.DSN != "" {
		repo, closeDB, err := o.openDB()
		if err != nil {
			return nil, nil, err
		}
		return repo, closeDB, nil
	}
	if o.Public == "" && o.Private == "" {
		return nil, nil, errors.New("set --public and/or --private, or --dsn")
	}

	mem := store.NewMemory()
	client := &http.Client{Timeout: 30 * time.Second}
	loader := feed.NewLoader(mem,
		feed.SourceFor(o.Public, client),
		feed.SourceFor(o.Private, client),
		log,
		feed.WithRetry(1, 0),
	)
	if _, err := loader.Load(ctx); err != nil {
		return nil, nil, err
	}
	return mem, func() {}, nil
}

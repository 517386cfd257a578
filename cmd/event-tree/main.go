// Command event-tree prints the event log of the assistant server as a tree,
// annotating each request with how it ended.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"

	eventdb "github.com/stupiduntilnot/kontempo/internal/db"
)

type options struct {
	dbPath     string
	role       string
	eventID    int64
	requestID  string
	maxDepth   int
	jsonOut    bool
	noPayload  bool
	failedOnly bool
}

func main() {
	log.SetPrefix("[event-tree] ")
	log.SetFlags(0)
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	database, err := sql.Open("sqlite3", opts.dbPath+"?mode=ro&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer database.Close()
	if err := database.Ping(); err != nil {
		return fmt.Errorf("open db %s: %w", opts.dbPath, err)
	}

	rootID, err := resolveRoot(database, opts)
	if err != nil {
		return err
	}
	events, err := eventdb.Subtree(database, rootID)
	if err != nil {
		return err
	}
	root := buildTree(events, rootID)
	if root == nil {
		return fmt.Errorf("event %d not found", rootID)
	}
	if opts.failedOnly {
		root.dropReplied()
	}

	if opts.jsonOut {
		return writeJSON(stdout, root, opts)
	}
	return writeText(stdout, root, opts)
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("event-tree", flag.ContinueOnError)
	fs.StringVar(&opts.dbPath, "db", envOrDefault("EVENT_DB_PATH", "./state/assistant.db"), "SQLite event database path")
	fs.StringVar(&opts.role, "role", "server", "process role whose latest run is the default root")
	fs.Int64Var(&opts.eventID, "id", 0, "show the subtree of this event id")
	fs.StringVar(&opts.requestID, "request", "", "show the subtree of the request with this X-Request-ID")
	fs.IntVar(&opts.maxDepth, "L", 0, "limit display depth (0 = unlimited)")
	fs.BoolVar(&opts.jsonOut, "json", false, "output JSON")
	fs.BoolVar(&opts.noPayload, "no-payload", false, "hide raw payload fields")
	fs.BoolVar(&opts.failedOnly, "failed", false, "hide requests that were answered")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.eventID != 0 && opts.requestID != "" {
		return options{}, errors.New("-id and -request cannot be combined")
	}
	if opts.maxDepth < 0 {
		return options{}, fmt.Errorf("-L must be >= 0, got %d", opts.maxDepth)
	}
	return opts, nil
}

// resolveRoot picks the tree root: an explicit event id, the latest event of
// a request id, or the latest process.started of the role.
func resolveRoot(database *sql.DB, opts options) (int64, error) {
	switch {
	case opts.eventID != 0:
		return opts.eventID, nil
	case opts.requestID != "":
		return eventdb.FindRequest(database, opts.requestID)
	default:
		return eventdb.LatestProcessRoot(database, opts.role)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

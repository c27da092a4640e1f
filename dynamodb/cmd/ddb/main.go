// ddb resolves the storage attributes of entities described by a schema
// document and writes them to DynamoDB or a local BadgerDB store.
//
// # Installation
//
//	go install github.com/acksell/keyforge/dynamodb/cmd/ddb@latest
//
// # Commands
//
//	ddb tables                    List tables and entity types
//	ddb key <entity> <json>       Resolve the primary key
//	ddb resolve <entity> <json>   Transform an entity to its storage attributes
//	ddb affected <entity> <json>  Index attributes affected by a change set
//	ddb put <entity> <json>       Write an entity
//	ddb get <entity> <json>       Read an entity by its key attributes
//
// Pass "-" instead of the JSON argument to read it from stdin.
package main

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/acksell/keyforge/dynamodb/internal/logger"
)

const version = "0.2.0"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("ddb", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.Usage = func() { printUsage(stdout) }
	verboseFlag := fs.BoolP("verbose", "v", false, "enable verbose (debug) logging")
	schemaFlag := fs.String("schema", "", "schema document (or set DDB_SCHEMA env var)")
	lenientFlag := fs.Bool("lenient", false, "pass through indexes without a table signature (or set DDB_LENIENT_SIGNATURES=true)")
	versionFlag := fs.Bool("version", false, "print the version")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}
	if *versionFlag {
		fmt.Fprintf(stdout, "ddb version %s\n", version)
		return nil
	}
	if fs.NArg() == 0 {
		printUsage(stdout)
		return fmt.Errorf("no command given")
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(wd)
	if err != nil {
		return err
	}
	if *schemaFlag != "" {
		cfg.Schema = *schemaFlag
	}
	if *lenientFlag {
		cfg.LenientSignatures = true
	}

	a := &app{
		cfg:   cfg,
		log:   logger.New(os.Stderr, *verboseFlag),
		stdin: stdin,
		out:   stdout,
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "tables":
		return a.runTables(cmdArgs)
	case "key":
		return a.runKey(cmdArgs)
	case "resolve":
		return a.runResolve(cmdArgs)
	case "affected":
		return a.runAffected(cmdArgs)
	case "put":
		return a.runPut(cmdArgs)
	case "get":
		return a.runGet(cmdArgs)
	case "help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ddb - DynamoDB schema resolution tools

Usage:
  ddb [--schema file] [--lenient] [-v] <command> [flags] [args]

Commands:
  tables                    List tables and entity types
  key <entity> <json>       Resolve the primary key
  resolve <entity> <json>   Transform an entity to its storage attributes
  affected <entity> <json>  Index attributes affected by a change set
  put <entity> <json>       Write an entity (--db dir or --aws)
  get <entity> <json>       Read an entity by its key attributes

Examples:
  ddb resolve User '{"id": "42", "email": "a@b.c"}'
  ddb affected User '{"status": "banned"}'
  echo '{"id": "42"}' | ddb put --db ./data User -

Configuration (optional):
  Create ddb.yaml for defaults, or set them in .env:

    schema: ./schema.yaml   # DDB_SCHEMA
    dataDir: ./data         # DDB_DATA_DIR
    region: eu-west-1       # AWS_REGION
    endpoint: http://localhost:8000  # DDB_ENDPOINT`)
}

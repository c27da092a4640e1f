package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/acksell/keyforge/dynamodb/ddbiface"
	"github.com/acksell/keyforge/dynamodb/ddbsdk"
	"github.com/acksell/keyforge/dynamodb/ddbstore"
	"github.com/acksell/keyforge/dynamodb/index/indices"
	"github.com/acksell/keyforge/dynamodb/resolve"
	"github.com/acksell/keyforge/dynamodb/schema"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type app struct {
	cfg   Config
	log   *slog.Logger
	stdin io.Reader
	out   io.Writer
}

func (a *app) load() (*indices.Registry, *resolve.Engine, error) {
	if a.cfg.Schema == "" {
		return nil, nil, fmt.Errorf("no schema document: use --schema, DDB_SCHEMA or ddb.yaml")
	}
	doc, err := schema.LoadFile(a.cfg.Schema)
	if err != nil {
		return nil, nil, err
	}
	reg, err := indices.FromDocument(doc, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load schema %s: %w", a.cfg.Schema, err)
	}
	engine, err := resolve.New(resolve.Config{
		Registry:          reg,
		Logger:            a.log,
		LenientSignatures: a.cfg.LenientSignatures,
	})
	if err != nil {
		return nil, nil, err
	}
	a.log.Debug("loaded schema", "path", a.cfg.Schema, "tables", len(reg.Tables()), "entities", len(reg.EntityTypes()))
	return reg, engine, nil
}

// entityArgs parses "<entity> <json>" where json may be "-" for stdin.
func (a *app) entityArgs(cmd string, args []string) (string, map[string]any, error) {
	if len(args) != 2 {
		return "", nil, fmt.Errorf("usage: ddb %s <entity> <json>", cmd)
	}
	var r io.Reader
	if args[1] == "-" {
		r = a.stdin
	} else {
		r = strings.NewReader(args[1])
	}
	var attrs map[string]any
	if err := json.NewDecoder(r).Decode(&attrs); err != nil {
		return "", nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return args[0], attrs, nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) runTables(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: ddb tables")
	}
	reg, _, err := a.load()
	if err != nil {
		return err
	}
	for _, t := range reg.Tables() {
		fmt.Fprintf(a.out, "table %s (%s)\n", t.Name, strings.Join(t.KeyDefinitions.Names(), ", "))
		for _, gsi := range t.GSIs {
			fmt.Fprintf(a.out, "  GSI %s (%s)\n", gsi.Name, strings.Join(gsi.KeyDefinitions.Names(), ", "))
		}
		for _, lsi := range t.LSIs {
			fmt.Fprintf(a.out, "  LSI %s (%s)\n", lsi.Name, lsi.SortKey.Name)
		}
	}
	for _, name := range reg.EntityTypes() {
		s, _ := reg.SchemaForEntityType(name)
		fmt.Fprintf(a.out, "entity %s -> %s\n", name, s.Table)
	}
	return nil
}

func (a *app) runKey(args []string) error {
	entityType, attrs, err := a.entityArgs("key", args)
	if err != nil {
		return err
	}
	_, engine, err := a.load()
	if err != nil {
		return err
	}
	key, err := engine.ResolvePrimaryKey(entityType, attrs)
	if err != nil {
		return err
	}
	return a.print(key)
}

func (a *app) runResolve(args []string) error {
	entityType, attrs, err := a.entityArgs("resolve", args)
	if err != nil {
		return err
	}
	_, engine, err := a.load()
	if err != nil {
		return err
	}
	stored, err := engine.TransformEntityToStorageAttributes(entityType, attrs)
	if err != nil {
		return err
	}
	return a.print(stored)
}

func (a *app) runAffected(args []string) error {
	fs := flag.NewFlagSet("affected", flag.ContinueOnError)
	separator := fs.String("separator", resolve.DefaultSeparator, "separator of nested attribute paths in the change set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entityType, changed, err := a.entityArgs("affected", fs.Args())
	if err != nil {
		return err
	}
	_, engine, err := a.load()
	if err != nil {
		return err
	}
	affected, err := engine.ComputeAffectedIndexAttributes(entityType, changed, resolve.WithSeparator(*separator))
	if err != nil {
		return err
	}
	return a.print(affected)
}

type backendFlags struct {
	db      *string
	useAWS  *bool
	timeout *time.Duration
}

func addBackendFlags(fs *flag.FlagSet, cfg Config) backendFlags {
	return backendFlags{
		db:      fs.String("db", cfg.DataDir, "BadgerDB directory (or set DDB_DATA_DIR env var)"),
		useAWS:  fs.Bool("aws", false, "use DynamoDB with the default AWS configuration"),
		timeout: fs.Duration("timeout", 30*time.Second, "request timeout"),
	}
}

// open returns the item client selected by the flags and a func releasing it.
func (a *app) open(ctx context.Context, b backendFlags, reg *indices.Registry) (ddbiface.ItemClient, func(), error) {
	if *b.useAWS {
		var opts []func(*awsconfig.LoadOptions) error
		if a.cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(a.cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if a.cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(a.cfg.Endpoint)
			}
		})
		return client, func() {}, nil
	}
	if *b.db == "" {
		return nil, nil, fmt.Errorf("--db or --aws is required")
	}
	store, err := ddbstore.New(ddbstore.StoreOptions{Path: *b.db, Logger: a.log}, reg.Tables()...)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			a.log.Error("failed to close store", "error", err)
		}
	}, nil
}

func (a *app) runPut(args []string) error {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	backend := addBackendFlags(fs, a.cfg)
	ifNotExists := fs.Bool("if-not-exists", false, "fail if the item already exists")
	ttl := fs.Duration("ttl", 0, "expire the item after this duration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entityType, entity, err := a.entityArgs("put", fs.Args())
	if err != nil {
		return err
	}
	reg, engine, err := a.load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *backend.timeout)
	defer cancel()
	db, closeDB, err := a.open(ctx, backend, reg)
	if err != nil {
		return err
	}
	defer closeDB()

	var opts []ddbsdk.WriteOption
	if *ifNotExists {
		opts = append(opts, ddbsdk.IfNotExists())
	}
	if *ttl > 0 {
		opts = append(opts, ddbsdk.WithTTL(time.Now().Add(*ttl)))
	}
	client := ddbsdk.New(db, ddbsdk.NewMarshaler(engine, reg), a.log)
	if err := client.Put(ctx, entityType, entity, opts...); err != nil {
		return err
	}
	a.log.Info("put entity", "entity", entityType)
	return nil
}

func (a *app) runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	backend := addBackendFlags(fs, a.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	entityType, key, err := a.entityArgs("get", fs.Args())
	if err != nil {
		return err
	}
	reg, engine, err := a.load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *backend.timeout)
	defer cancel()
	db, closeDB, err := a.open(ctx, backend, reg)
	if err != nil {
		return err
	}
	defer closeDB()

	client := ddbsdk.New(db, ddbsdk.NewMarshaler(engine, reg), a.log)
	item, found, err := client.Get(ctx, entityType, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s not found", entityType)
	}
	return a.print(item)
}

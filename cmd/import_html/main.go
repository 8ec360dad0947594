package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/XYIAN/form-flow-sub001/internal/htmlimport"
	"github.com/XYIAN/form-flow-sub001/internal/store"

	_ "github.com/XYIAN/form-flow-sub001/internal/store/mssql"
	_ "github.com/XYIAN/form-flow-sub001/internal/store/postgres"
	_ "github.com/XYIAN/form-flow-sub001/internal/store/sqlite"
)

// run is the testable entrypoint for this command.
//
// It parses args, reads HTML from either a file (via -in) or stdin, lifts the
// form controls into a form schema, and writes the schema as JSON. With -save
// the form is persisted first and the stored row is printed instead.
//
// Exit codes:
//   - 0 on success
//   - 1 on operational errors (I/O, no importable controls, save failure)
//   - 2 on invalid CLI usage or store configuration
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var inPath, outPath, storeKind, storeDSN string
	var save bool

	fs := flag.NewFlagSet("import_html", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&inPath, "in", "", "path to input HTML file (reads stdin if omitted)")
	fs.StringVar(&outPath, "out", "", "write form JSON to this file instead of stdout")
	fs.BoolVar(&save, "save", false, "persist the imported form to the configured store")
	fs.StringVar(&storeKind, "store-kind", "", "store backend: sqlite, postgres or mssql (env FORMFLOW_STORE_KIND, default sqlite)")
	fs.StringVar(&storeDSN, "store-dsn", "", "store DSN (env FORMFLOW_STORE_DSN)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	r := stdin
	if inPath != "" {
		f, err := os.Open(inPath)
		if err != nil {
			fmt.Fprintf(stderr, "open %q: %v\n", inPath, err)
			return 1
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	imported, err := htmlimport.Import(r)
	if err != nil {
		fmt.Fprintf(stderr, "import: %v\n", err)
		return 1
	}

	var out any = imported
	if save {
		if storeDSN == "" {
			storeDSN = os.Getenv("FORMFLOW_STORE_DSN")
		}
		if storeDSN == "" {
			fmt.Fprintln(stderr, "missing -store-dsn (or FORMFLOW_STORE_DSN)")
			return 2
		}
		if storeKind == "" {
			storeKind = os.Getenv("FORMFLOW_STORE_KIND")
		}
		if storeKind == "" {
			storeKind = "sqlite"
		}

		ctx := context.Background()
		repo, err := store.New(ctx, store.Config{Kind: storeKind, DSN: storeDSN})
		if err != nil {
			fmt.Fprintf(stderr, "open store: %v\n", err)
			return 2
		}
		defer repo.Close()
		if err := repo.Init(ctx); err != nil {
			fmt.Fprintf(stderr, "init store: %v\n", err)
			return 2
		}

		saved, err := repo.SaveForm(ctx, imported)
		if err != nil {
			fmt.Fprintf(stderr, "save form: %v\n", err)
			return 1
		}
		out = saved
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "encode form: %v\n", err)
		return 1
	}
	b = append(b, '\n')

	if outPath == "" {
		if _, err := stdout.Write(b); err != nil {
			fmt.Fprintf(stderr, "write output: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		fmt.Fprintf(stderr, "write %s: %v\n", outPath, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// artx-bundle exports and imports TAR bundles of snapshot blocks, the
// market's offline backup/restore path between block store backends.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"

	"github.com/macterra/artx-market/storage"
	"github.com/macterra/artx-market/storage/bundle"
	"github.com/macterra/artx-market/storage/registry"

	_ "github.com/macterra/artx-market/storage/grpcstore"
	_ "github.com/macterra/artx-market/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "export":
		return cmdExport(args[1:], out, errOut)
	case "import":
		return cmdImport(args[1:], out, errOut)
	case "list-backends":
		for _, b := range registry.List(registry.UsageCLI) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "artx-bundle: block bundle backup and restore")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  artx-bundle export [-backend <name>] [backend flags] -out <file> <cid>...")
	fmt.Fprintln(w, "  artx-bundle import [-backend <name>] [backend flags] -in <file> [-ignore-unknown]")
	fmt.Fprintln(w, "  artx-bundle list-backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - export validates every block against its cid before writing")
	fmt.Fprintln(w, "  - import is fail-closed: unknown tar entries abort unless -ignore-unknown")
}

func openStore(backend string, errOut io.Writer) (storage.BlockStore, func() error, bool) {
	store, closeFn, err := registry.Open(backend, registry.UsageCLI)
	if err != nil {
		fmt.Fprintf(errOut, "backend: %v\n", err)
		return nil, nil, false
	}
	return store, closeFn, true
}

func cmdExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	backend := fs.String("backend", "localfs", "block store backend name")
	outPath := fs.String("out", "", "bundle file to write")
	registry.RegisterFlags(fs, registry.UsageCLI)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *outPath == "" || fs.NArg() == 0 {
		fmt.Fprintln(errOut, "export requires -out and at least one cid")
		return 2
	}

	ids := make([]cid.Cid, 0, fs.NArg())
	for _, arg := range fs.Args() {
		id, err := cid.Decode(arg)
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid %q: %v\n", arg, err)
			return 2
		}
		ids = append(ids, id)
	}

	store, closeFn, ok := openStore(*backend, errOut)
	if !ok {
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	if err := bundle.Export(f, store, ids, bundle.ExportOptions{IncludeIndex: true}); err != nil {
		_ = f.Close()
		_ = os.Remove(*outPath)
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "exported %d blocks to %s\n", len(ids), *outPath)
	return 0
}

func cmdImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	backend := fs.String("backend", "localfs", "block store backend name")
	inPath := fs.String("in", "", "bundle file to read")
	ignoreUnknown := fs.Bool("ignore-unknown", false, "Skip unrecognized tar entries instead of aborting")
	registry.RegisterFlags(fs, registry.UsageCLI)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inPath == "" {
		fmt.Fprintln(errOut, "import requires -in")
		return 2
	}

	store, closeFn, ok := openStore(*backend, errOut)
	if !ok {
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	f, err := os.Open(*inPath)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	defer f.Close()

	if err := bundle.ImportWithOptions(f, store, bundle.ImportOptions{IgnoreUnknown: *ignoreUnknown}); err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/macterra/artx-market/keys"
	"github.com/macterra/artx-market/ledger/archiver"
	"github.com/macterra/artx-market/storage"
	"github.com/macterra/artx-market/storage/registry"

	_ "github.com/macterra/artx-market/storage/grpcstore"
	_ "github.com/macterra/artx-market/storage/localfs"
)

func main() {
	fs := flag.NewFlagSet("artx-archiverd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:5115", "listen address")
	backend := fs.String("backend", "localfs", "block store backend name")
	mirror := fs.String("mirror", "", "second backend mirrored on every write (redundant storage)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	chain := fs.String("chain", "tBTC", "chain id stamped into certificates")
	confirmAfter := fs.Int("confirm-after", 2, "certify polls before a txn confirms")
	seedFile := fs.String("seed-file", "", "ed25519 seed file for certificate signing (hex)")
	initSeed := fs.Bool("init-seed", false, "Create -seed-file with a fresh random seed if missing")

	registry.RegisterFlags(fs, registry.UsageDaemon)

	_ = fs.Parse(os.Args[1:])
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}

	var seed []byte
	if *seedFile != "" {
		var err error
		seed, err = loadOrInitSeed(*seedFile, *initSeed)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	store, closeFn, err := registry.Open(*backend, registry.UsageDaemon)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if closeFn != nil {
		defer closeFn()
	}
	if *mirror != "" {
		if *mirror == *backend {
			fmt.Fprintln(os.Stderr, "-mirror must name a different backend than -backend")
			os.Exit(2)
		}
		second, closeSecond, err := registry.Open(*mirror, registry.UsageDaemon)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if closeSecond != nil {
			defer closeSecond()
		}
		store = storage.Mirror{Backends: []storage.Named{
			{Name: *backend, Store: store},
			{Name: *mirror, Store: second},
		}}
	}

	svc, err := archiver.New(store, archiver.Options{
		Chain:        *chain,
		ConfirmAfter: *confirmAfter,
		SignSeed:     seed,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	srv := &http.Server{
		Addr:              *listen,
		Handler:           archiver.Handler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(os.Stderr, "artx-archiverd listening on %s (backend=%s chain=%s signing=%v)\n",
		*listen, *backend, *chain, seed != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadOrInitSeed(path string, initIfMissing bool) ([]byte, error) {
	seed, err := keys.LoadSeedFile(path)
	if err == nil {
		return seed, nil
	}
	if !errors.Is(err, os.ErrNotExist) || !initIfMissing {
		return nil, fmt.Errorf("seed file: %w", err)
	}
	seed = make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	if err := keys.SaveSeedFile(path, seed); err != nil {
		return nil, fmt.Errorf("seed file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "created signing seed at %s\n", path)
	return seed, nil
}

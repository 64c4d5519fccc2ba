// artxd is the market maintenance daemon: it pins content snapshots, drives
// the notarization state machine against an archiver, and runs the
// asset/agent integrity scan.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/macterra/artx-market/admin"
	"github.com/macterra/artx-market/cert"
	"github.com/macterra/artx-market/integrity"
	"github.com/macterra/artx-market/ledger"
	"github.com/macterra/artx-market/market"
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
	case "run":
		return cmdRun(args[1:], out, errOut)
	case "check":
		return cmdCheck(args[1:], out, errOut)
	case "pin":
		return cmdPin(args[1:], out, errOut)
	case "register":
		return cmdRegister(args[1:], out, errOut)
	case "integrity":
		return cmdIntegrity(args[1:], out, errOut)
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
	fmt.Fprintln(w, "artxd: market notarization and integrity daemon")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  artxd run [-data <dir>] [-config <file>] [-archiver <url>] [-interval <dur>]")
	fmt.Fprintln(w, "  artxd check [-data <dir>] [-config <file>] [-archiver <url>]")
	fmt.Fprintln(w, "  artxd pin [-data <dir>] [-archiver <url>] [-path <dir>]")
	fmt.Fprintln(w, "  artxd register [-data <dir>] [-config <file>] [-archiver <url>]")
	fmt.Fprintln(w, "  artxd integrity [-data <dir>] [-config <file>] [-archiver <url>] [-repair=false] [-workers <n>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - -data holds assets/, agents/, certs/, and state.json")
	fmt.Fprintln(w, "  - -config is TOML; absent keys use the stock schedule")
	fmt.Fprintln(w, "  - run certifies and re-notarizes once per -interval until interrupted")
}

// common holds flags shared by every subcommand.
type common struct {
	data     string
	config   string
	archiver string
	name     string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.data, "data", "data", "market data directory")
	fs.StringVar(&c.config, "config", "", "TOML config file (optional)")
	fs.StringVar(&c.archiver, "archiver", "http://localhost:5115", "archiver endpoint")
	fs.StringVar(&c.name, "name", "artx-market", "market name (determines market id)")
}

func (c *common) loadConfig(errOut io.Writer) (admin.Config, bool) {
	if c.config == "" {
		return admin.DefaultConfig(), true
	}
	cfg, err := admin.LoadConfig(c.config)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return admin.Config{}, false
	}
	return cfg, true
}

func (c *common) machine(cfg admin.Config, errOut io.Writer) (*admin.Machine, bool) {
	store, err := admin.NewStateStore(filepath.Join(c.data, "state.json"), c.name)
	if err != nil {
		fmt.Fprintf(errOut, "state: %v\n", err)
		return nil, false
	}
	certs, err := cert.NewStore(filepath.Join(c.data, "certs"))
	if err != nil {
		fmt.Fprintf(errOut, "certs: %v\n", err)
		return nil, false
	}
	client, err := ledger.NewHTTPClient(c.archiver, ledger.HTTPOptions{})
	if err != nil {
		fmt.Fprintf(errOut, "archiver: %v\n", err)
		return nil, false
	}
	m, err := admin.NewMachine(store, certs, client, cfg)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return nil, false
	}
	return m, true
}

func cmdRun(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var c common
	c.register(fs)
	interval := fs.Duration("interval", time.Hour, "tick interval for certify + notarize check")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, ok := c.loadConfig(errOut)
	if !ok {
		return 2
	}
	m, ok := c.machine(cfg, errOut)
	if !ok {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(errOut, "artxd running (data=%s archiver=%s interval=%s)\n", c.data, c.archiver, *interval)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		tick(ctx, m, errOut)
		select {
		case <-ctx.Done():
			fmt.Fprintln(errOut, "artxd shutting down")
			return 0
		case <-ticker.C:
		}
	}
}

// tick runs one maintenance round: settle any confirmed transaction first,
// then decide whether to notarize or bump.
func tick(ctx context.Context, m *admin.Machine, errOut io.Writer) {
	if err := m.Certify(ctx); err != nil {
		fmt.Fprintf(errOut, "certify: %v\n", err)
	}
	if _, err := m.NotarizeCheck(ctx); err != nil {
		fmt.Fprintf(errOut, "notarize check: %v\n", err)
	}
}

func cmdCheck(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, ok := c.loadConfig(errOut)
	if !ok {
		return 2
	}
	m, ok := c.machine(cfg, errOut)
	if !ok {
		return 1
	}

	ctx := context.Background()
	if err := m.Certify(ctx); err != nil {
		fmt.Fprintf(errOut, "certify: %v\n", err)
		return 1
	}
	res, err := m.NotarizeCheck(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "notarize check: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, res)
	return 0
}

func cmdPin(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("pin", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var c common
	c.register(fs)
	path := fs.String("path", "", "file or directory to pin (defaults to -data)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *path == "" {
		*path = c.data
	}

	cfg, ok := c.loadConfig(errOut)
	if !ok {
		return 2
	}
	m, ok := c.machine(cfg, errOut)
	if !ok {
		return 1
	}
	if err := m.Pin(context.Background(), *path); err != nil {
		fmt.Fprintf(errOut, "pin: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdRegister(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, ok := c.loadConfig(errOut)
	if !ok {
		return 2
	}
	m, ok := c.machine(cfg, errOut)
	if !ok {
		return 1
	}
	if err := m.Register(context.Background()); err != nil {
		fmt.Fprintf(errOut, "register: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdIntegrity(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("integrity", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var c common
	c.register(fs)
	repair := fs.Bool("repair", true, "Apply repairs and quarantines (false = report only)")
	workers := fs.Int("workers", integrity.DefaultWorkers, "scan concurrency")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, ok := c.loadConfig(errOut)
	if !ok {
		return 2
	}
	repo, err := market.NewRepo(c.data)
	if err != nil {
		fmt.Fprintf(errOut, "repo: %v\n", err)
		return 1
	}
	client, err := ledger.NewHTTPClient(c.archiver, ledger.HTTPOptions{})
	if err != nil {
		fmt.Fprintf(errOut, "archiver: %v\n", err)
		return 1
	}

	mode := integrity.Repair
	if !*repair {
		mode = integrity.ReportOnly
	}
	engine, err := integrity.New(repo, client, integrity.Options{
		Mode:           mode,
		DefaultCredits: cfg.DefaultCredits,
		Workers:        *workers,
	})
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}

	report, err := engine.Run(context.Background())
	if err != nil {
		fmt.Fprintf(errOut, "integrity: %v\n", err)
		return 1
	}

	printPass(out, "assets", report.Assets)
	printPass(out, "agents", report.Agents)
	if report.Assets.Count(integrity.Unrepairable) > 0 || report.Agents.Count(integrity.Unrepairable) > 0 {
		return 1
	}
	return 0
}

func printPass(out io.Writer, label string, r *integrity.PassReport) {
	fmt.Fprintf(out, "%s: %d verified, %d repaired, %d unrepairable\n",
		label, r.Count(integrity.Verified), r.Count(integrity.Repaired), r.Count(integrity.Unrepairable))
	for _, f := range r.Sorted() {
		if f.Outcome == integrity.Verified && len(f.Notes) == 0 {
			continue
		}
		for _, n := range f.Notes {
			fmt.Fprintf(out, "  %s [%s]: %s\n", f.XID, f.Outcome, n)
		}
	}
}

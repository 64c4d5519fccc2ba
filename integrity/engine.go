// Package integrity implements the full-scan consistency checker and
// repairer for asset and agent records.
//
// Two passes cover every record: the asset pass enforces identity and
// owner-index invariants (quarantining assets that cannot name themselves or
// their owner), and the agent pass enforces credit and index-ownership
// invariants. The asset pass runs to completion first, since it appends index
// entries the agent pass then reads. Repairs are deterministic and
// idempotent: a second run over the same data finds nothing left to fix.
//
// Repair policy note: when an agent's index claims an asset whose owner
// field disagrees, the index wins and ownership is reassigned. An index
// entry on the agent record is treated as stronger evidence of intended
// ownership than the asset's denormalized owner field, which is more easily
// corrupted by partial writes.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/macterra/artx-market/ledger"
	"github.com/macterra/artx-market/market"
)

var log = logging.Logger("integrity")

// DefaultWorkers bounds the scan's concurrency. The scan is I/O-bound
// across many small files, so a modest pool wins without saturating disk.
const DefaultWorkers = 8

// Options configures an Engine.
type Options struct {
	// Mode selects repair vs report-only. Default is Repair.
	Mode Mode
	// DefaultCredits is the starting balance used when repairing an agent
	// with a missing credits field.
	DefaultCredits int64
	// Workers bounds per-pass concurrency. Default DefaultWorkers.
	Workers int
	// Now overrides the clock for commit events (tests).
	Now func() time.Time
}

// Engine scans and repairs the repository.
type Engine struct {
	repo   *market.Repo
	client ledger.Client
	opts   Options

	// repairMu serializes repairs that read-modify-write a record other than
	// the one the worker owns (index appends, ownership reassignment). The
	// repo's per-key locks cover single writes, not read-modify-write.
	repairMu sync.Mutex
}

// New assembles an engine over repo, auditing through client.
func New(repo *market.Repo, client ledger.Client, opts Options) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("integrity: repo is required")
	}
	if client == nil {
		return nil, errors.New("integrity: ledger client is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{repo: repo, client: client, opts: opts}, nil
}

// Run gates on archiver readiness, then executes the asset pass followed by
// the agent pass. Records within a pass are scanned concurrently.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if err := e.client.Ready(ctx); err != nil {
		return nil, fmt.Errorf("integrity: archiver not ready: %w", err)
	}

	report := &Report{Assets: &PassReport{}, Agents: &PassReport{}}

	if err := e.checkAssets(ctx, report.Assets); err != nil {
		return nil, err
	}
	if err := e.checkAgents(ctx, report.Agents); err != nil {
		return nil, err
	}

	log.Infow("integrity run complete",
		"assets_verified", report.Assets.Count(Verified),
		"assets_repaired", report.Assets.Count(Repaired),
		"assets_unrepairable", report.Assets.Count(Unrepairable),
		"agents_verified", report.Agents.Count(Verified),
		"agents_repaired", report.Agents.Count(Repaired),
		"agents_unrepairable", report.Agents.Count(Unrepairable),
	)
	return report, nil
}

// CheckAssets runs only the asset pass (after the readiness gate).
func (e *Engine) CheckAssets(ctx context.Context) (*PassReport, error) {
	if err := e.client.Ready(ctx); err != nil {
		return nil, fmt.Errorf("integrity: archiver not ready: %w", err)
	}
	r := &PassReport{}
	if err := e.checkAssets(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// CheckAgents runs only the agent pass (after the readiness gate).
func (e *Engine) CheckAgents(ctx context.Context) (*PassReport, error) {
	if err := e.client.Ready(ctx); err != nil {
		return nil, fmt.Errorf("integrity: archiver not ready: %w", err)
	}
	r := &PassReport{}
	if err := e.checkAgents(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (e *Engine) forEach(ctx context.Context, ids []string, fn func(ctx context.Context, xid string) Finding, report *PassReport) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.add(fn(ctx, id))
			return nil
		})
	}
	return g.Wait()
}

// audit appends a commit-log entry for a repair or quarantine. The commit
// log is an append-only audit sink; a transient archiver failure must not
// undo a completed repair, so failures are logged and swallowed.
func (e *Engine) audit(ctx context.Context, eventType, xid, message string) {
	if e.opts.Mode == ReportOnly {
		return
	}
	_, err := e.client.Commit(ctx, ledger.CommitEvent{
		Type:    eventType,
		XID:     xid,
		Message: message,
		At:      e.opts.Now().UTC(),
	})
	if err != nil {
		log.Warnw("commit-log entry failed", "type", eventType, "xid", xid, "err", err)
	}
}

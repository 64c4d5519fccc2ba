package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/macterra/artx-market/market"
)

func (e *Engine) checkAssets(ctx context.Context, report *PassReport) error {
	ids, err := e.repo.ListAssetIDs()
	if err != nil {
		return err
	}
	log.Infow("asset pass starting", "assets", len(ids))
	return e.forEach(ctx, ids, e.checkAsset, report)
}

// checkAsset classifies one asset as verified, repaired, or unrepairable.
//
// Quarantine (deleting the asset's storage) is reserved for assets missing
// their essential identity: no xid anywhere, no owner, or an owner that does
// not resolve. Such records cannot participate in any future consistency
// proof and are not worth preserving.
func (e *Engine) checkAsset(ctx context.Context, xid string) Finding {
	f := Finding{XID: xid, Outcome: Verified}

	asset, err := e.repo.GetAsset(xid)
	if err != nil {
		if errors.Is(err, market.ErrNotFound) {
			// Removed between enumeration and load; nothing to check.
			f.Notes = append(f.Notes, "record vanished during scan")
			return f
		}
		return e.quarantine(ctx, f, fmt.Sprintf("unreadable record: %v", err))
	}

	repaired := false

	// Legacy shape: identifier stored inside the payload instead of at the
	// top level. Relocate before checking anything else.
	if asset.XID == "" {
		if legacy := asset.PayloadXID(); legacy != "" {
			asset.XID = legacy
			asset.ClearPayloadXID()
			repaired = true
			f.Notes = append(f.Notes, fmt.Sprintf("relocated payload xid %q to top level", legacy))
		}
	}

	if asset.XID == "" {
		return e.quarantine(ctx, f, "missing xid")
	}
	if asset.XID != xid {
		// The storage key addresses the record; it is the ground truth.
		f.Notes = append(f.Notes, fmt.Sprintf("xid %q corrected to storage key %q", asset.XID, xid))
		asset.XID = xid
		repaired = true
	}

	owner := asset.Owner()
	if owner == "" {
		return e.quarantine(ctx, f, "missing owner")
	}
	agent, err := e.repo.GetAgent(owner)
	if err != nil {
		if errors.Is(err, market.ErrNotFound) {
			return e.quarantine(ctx, f, fmt.Sprintf("owner %q does not exist", owner))
		}
		f.Outcome = Unrepairable
		f.Notes = append(f.Notes, fmt.Sprintf("owner %q unreadable: %v", owner, err))
		return f
	}

	kind, err := asset.Kind()
	if err != nil {
		// No safe automatic fix: picking a payload kind would be guessing.
		f.Outcome = Unrepairable
		f.Notes = append(f.Notes, "payload matches zero or multiple kinds")
		return f
	}

	if !agent.HasIndexed(kind, xid) {
		f.Notes = append(f.Notes, fmt.Sprintf("appended to owner %q index %q", owner, kind))
		if e.opts.Mode == Repair {
			if err := e.appendOwnerIndex(owner, kind, xid); err != nil {
				f.Outcome = Unrepairable
				f.Notes = append(f.Notes, fmt.Sprintf("failed to save owner: %v", err))
				return f
			}
			e.audit(ctx, "integrity.repair", xid,
				fmt.Sprintf("indexed asset under agent %s (%s)", owner, kind))
		}
		repaired = true
	}

	if repaired {
		if e.opts.Mode == Repair {
			if err := e.repo.SaveAsset(asset); err != nil {
				f.Outcome = Unrepairable
				f.Notes = append(f.Notes, fmt.Sprintf("failed to save asset: %v", err))
				return f
			}
		}
		f.Outcome = Repaired
		log.Infow("asset repaired", "xid", xid, "notes", f.Notes)
	}
	return f
}

// appendOwnerIndex re-loads the owner under the repair lock before
// appending, so two workers repairing assets of the same owner cannot lose
// each other's updates.
func (e *Engine) appendOwnerIndex(owner string, kind market.Kind, xid string) error {
	e.repairMu.Lock()
	defer e.repairMu.Unlock()
	agent, err := e.repo.GetAgent(owner)
	if err != nil {
		return err
	}
	if agent.HasIndexed(kind, xid) {
		return nil
	}
	agent.AppendIndex(kind, xid)
	return e.repo.SaveAgent(agent)
}

// quarantine removes an asset's storage entirely and reports it
// unrepairable. Destructive by design; always logged and committed.
func (e *Engine) quarantine(ctx context.Context, f Finding, reason string) Finding {
	f.Outcome = Unrepairable
	f.Notes = append(f.Notes, reason)

	if e.opts.Mode == Repair {
		if err := e.repo.RemoveAsset(f.XID); err != nil && !errors.Is(err, market.ErrNotFound) {
			f.Notes = append(f.Notes, fmt.Sprintf("quarantine failed: %v", err))
			return f
		}
		f.Quarantined = true
		log.Warnw("asset quarantined", "xid", f.XID, "reason", reason)
		e.audit(ctx, "integrity.quarantine", f.XID, reason)
	}
	return f
}

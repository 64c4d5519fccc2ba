package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/macterra/artx-market/market"
)

func (e *Engine) checkAgents(ctx context.Context, report *PassReport) error {
	ids, err := e.repo.ListAgentIDs()
	if err != nil {
		return err
	}
	log.Infow("agent pass starting", "agents", len(ids))
	return e.forEach(ctx, ids, e.checkAgent, report)
}

// checkAgent classifies one agent. Agents are never quarantined: the repair
// policy only initializes missing credits and reasserts ownership over
// indexed assets. A kind mismatch between an index and its asset has no safe
// automatic fix and is reported unrepairable.
func (e *Engine) checkAgent(ctx context.Context, xid string) Finding {
	f := Finding{XID: xid, Outcome: Verified}

	agent, err := e.repo.GetAgent(xid)
	if err != nil {
		if errors.Is(err, market.ErrNotFound) {
			f.Notes = append(f.Notes, "record vanished during scan")
			return f
		}
		f.Outcome = Unrepairable
		f.Notes = append(f.Notes, fmt.Sprintf("unreadable record: %v", err))
		return f
	}

	repaired := false
	broken := false

	if agent.Credits == nil {
		credits := e.opts.DefaultCredits
		agent.Credits = &credits
		repaired = true
		f.Notes = append(f.Notes, fmt.Sprintf("initialized credits to %d", credits))
	}

	for _, idx := range []struct {
		kind market.Kind
		ids  []string
	}{
		{market.KindFile, agent.Created},
		{market.KindNFT, agent.Collected},
		{market.KindCollection, agent.Collections},
	} {
		for _, assetID := range idx.ids {
			note, fixed, ok := e.checkIndexed(ctx, agent, idx.kind, assetID)
			if note != "" {
				f.Notes = append(f.Notes, note)
			}
			if fixed {
				repaired = true
			}
			if !ok {
				broken = true
			}
		}
	}

	if repaired && e.opts.Mode == Repair {
		if err := e.repo.SaveAgent(agent); err != nil {
			f.Outcome = Unrepairable
			f.Notes = append(f.Notes, fmt.Sprintf("failed to save agent: %v", err))
			return f
		}
	}

	switch {
	case broken:
		// A record with both repairs and unfixable findings still needs the
		// operator; unrepairable dominates.
		f.Outcome = Unrepairable
	case repaired:
		f.Outcome = Repaired
		log.Infow("agent repaired", "xid", xid, "notes", f.Notes)
	}
	return f
}

// checkIndexed verifies one index entry. It returns a human-readable note
// (empty when the entry is clean), whether a repair was applied, and whether
// the entry is in a consistent final state.
func (e *Engine) checkIndexed(ctx context.Context, agent *market.Agent, kind market.Kind, assetID string) (note string, fixed, ok bool) {
	asset, err := e.repo.GetAsset(assetID)
	if err != nil {
		if errors.Is(err, market.ErrNotFound) {
			return fmt.Sprintf("index %q entry %q does not resolve", kind, assetID), false, false
		}
		return fmt.Sprintf("index %q entry %q unreadable: %v", kind, assetID, err), false, false
	}

	assetKind, err := asset.Kind()
	if err != nil {
		return fmt.Sprintf("index %q entry %q has ambiguous payload", kind, assetID), false, false
	}
	if assetKind != kind {
		// Guessing the intended type would be repair by invention.
		return fmt.Sprintf("index %q entry %q is a %q asset", kind, assetID, assetKind), false, false
	}

	if asset.Asset == nil {
		return fmt.Sprintf("index %q entry %q has no asset metadata", kind, assetID), false, false
	}
	if asset.Asset.Owner == agent.XID {
		return "", false, true
	}

	// Ownership mismatch: the agent-side index is the source of truth.
	before := asset.Asset.Owner
	note = fmt.Sprintf("reassigned owner of %q from %q to %q", assetID, before, agent.XID)
	if e.opts.Mode == Repair {
		if err := e.reassignOwner(assetID, agent.XID); err != nil {
			return fmt.Sprintf("failed to reassign owner of %q: %v", assetID, err), false, false
		}
		log.Infow("ownership reassigned", "asset", assetID, "from", before, "to", agent.XID)
		e.audit(ctx, "integrity.repair", assetID,
			fmt.Sprintf("owner reassigned from %s to %s", before, agent.XID))
	}
	return note, true, true
}

// reassignOwner re-loads the asset under the repair lock before rewriting
// its owner field.
func (e *Engine) reassignOwner(assetID, owner string) error {
	e.repairMu.Lock()
	defer e.repairMu.Unlock()
	asset, err := e.repo.GetAsset(assetID)
	if err != nil {
		return err
	}
	if asset.Asset == nil {
		return fmt.Errorf("asset %q has no metadata", assetID)
	}
	if asset.Asset.Owner == owner {
		return nil
	}
	asset.Asset.Owner = owner
	return e.repo.SaveAsset(asset)
}

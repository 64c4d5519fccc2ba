package integrity

import (
	"sort"
	"sync"
)

// Outcome classifies one record at the end of a pass. Every scanned record
// ends as exactly one of these; there is no ambiguous state.
type Outcome string

const (
	// Verified: all invariants held.
	Verified Outcome = "verified"
	// Repaired: at least one invariant was broken and deterministically
	// fixed (or would be, in report-only mode).
	Repaired Outcome = "repaired"
	// Unrepairable: an invariant is broken with no safe automatic fix.
	// Assets missing their essential identity fields are additionally
	// quarantined; everything else is reported to the operator untouched.
	Unrepairable Outcome = "unrepairable"
)

// Mode selects whether the engine applies fixes or only classifies.
type Mode int

const (
	// Repair applies fixes and quarantines.
	Repair Mode = iota
	// ReportOnly classifies records without writing anything.
	ReportOnly
)

// Finding is the result for a single record.
type Finding struct {
	XID     string
	Outcome Outcome
	// Notes records each invariant checked or repaired, with before/after
	// detail for repairs and the reason for quarantines.
	Notes []string
	// Quarantined marks an asset whose storage was removed.
	Quarantined bool
}

// PassReport aggregates one full pass over assets or agents.
type PassReport struct {
	mu       sync.Mutex
	Findings []Finding
}

func (r *PassReport) add(f Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Findings = append(r.Findings, f)
}

// Count returns the number of findings with the given outcome.
func (r *PassReport) Count(o Outcome) int {
	n := 0
	for _, f := range r.Findings {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Sorted returns findings ordered by xid. Scan order is directory order and
// therefore unspecified; reports are sorted so runs are comparable.
func (r *PassReport) Sorted() []Finding {
	out := append([]Finding(nil), r.Findings...)
	sort.Slice(out, func(i, j int) bool { return out[i].XID < out[j].XID })
	return out
}

// Report is the result of a full integrity run.
type Report struct {
	Assets *PassReport
	Agents *PassReport
}

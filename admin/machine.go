package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/macterra/artx-market/cert"
	"github.com/macterra/artx-market/ledger"
)

var log = logging.Logger("admin")

var (
	// ErrPending rejects register/notarize while a transaction is in flight.
	ErrPending = errors.New("admin: notarization already pending")
	// ErrNoSnapshot rejects anchoring before any snapshot has been pinned.
	ErrNoSnapshot = errors.New("admin: no content snapshot to anchor")
)

// CheckResult reports what a NotarizeCheck invocation did.
type CheckResult string

const (
	// CheckNoop: nothing to do (never registered, certificate still fresh,
	// or pending within its grace window).
	CheckNoop CheckResult = "noop"
	// CheckSkipped: another invocation was already running.
	CheckSkipped CheckResult = "skipped"
	// CheckNotarized: a new notarization round was opened.
	CheckNotarized CheckResult = "notarized"
	// CheckBumped: the pending transaction was replaced at a higher fee.
	CheckBumped CheckResult = "bumped"
	// CheckCeiling: a bump was due but the fee would exceed the ceiling;
	// the machine waits rather than overpay.
	CheckCeiling CheckResult = "ceiling"
)

// Machine drives the market's anchoring lifecycle:
//
//	Uninitialized → Registered(pending) → Certified(latest)
//	             → Stale(latest, pending) → Certified(latest') → …
//
// It owns all mutation of the admin State. Ledger I/O failures are logged
// and treated as "try again next tick"; they never escape NotarizeCheck.
// Local state-persistence failures propagate, since silently losing a
// pending txn id would invite duplicate registration.
type Machine struct {
	// mu serializes every state mutation. NotarizeCheck takes it with
	// TryLock so overlapping timer runs skip instead of queueing.
	mu     sync.Mutex
	store  *StateStore
	certs  *cert.Store
	client ledger.Client
	cfg    Config
	now    func() time.Time
}

// NewMachine validates cfg and assembles the state machine.
func NewMachine(store *StateStore, certs *cert.Store, client ledger.Client, cfg Config) (*Machine, error) {
	if store == nil || certs == nil || client == nil {
		return nil, errors.New("admin: store, certs, and client are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{
		store:  store,
		certs:  certs,
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// Pin content-addresses the market data at path and records the snapshot cid
// as the state to be anchored next round.
func (m *Machine) Pin(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.store.Load()
	if err != nil {
		return err
	}
	id, err := m.client.Pin(ctx, path)
	if err != nil {
		return err
	}
	st.CID = id
	return m.store.Save(st)
}

// Register requests initial anchoring of the current snapshot. Requires no
// transaction in flight. A ledger failure leaves state untouched and is not
// an error: the next scheduled check retries.
func (m *Machine) Register(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.store.Load()
	if err != nil {
		return err
	}
	if st.Pending != "" {
		return ErrPending
	}
	if st.CID == "" {
		return ErrNoSnapshot
	}

	txn, err := m.client.Register(ctx, st.ID, st.CID)
	if err != nil {
		log.Warnw("register failed, will retry next tick", "market", st.ID, "err", err)
		return nil
	}
	st.Pending = txn
	log.Infow("registered", "market", st.ID, "cid", st.CID, "txn", txn)
	return m.store.Save(st)
}

// Notarize opens a re-anchoring round at an explicit fee rate. Symmetric to
// Register.
func (m *Machine) Notarize(ctx context.Context, fee int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.notarize(ctx, fee)
	return err
}

// notarize is the unlocked notarization path; the caller holds m.mu. It
// returns the opened txn id, or "" when a swallowed ledger failure left
// nothing in flight.
func (m *Machine) notarize(ctx context.Context, fee int64) (string, error) {
	st, err := m.store.Load()
	if err != nil {
		return "", err
	}
	if st.Pending != "" {
		return "", ErrPending
	}
	if st.CID == "" {
		return "", ErrNoSnapshot
	}

	txn, err := m.client.Notarize(ctx, st.ID, st.CID, fee)
	if err != nil {
		log.Warnw("notarize failed, will retry next tick", "market", st.ID, "fee", fee, "err", err)
		return "", nil
	}
	st.Pending = txn
	if err := m.store.Save(st); err != nil {
		return "", err
	}
	log.Infow("notarized", "market", st.ID, "cid", st.CID, "fee", fee, "txn", txn)
	return txn, nil
}

// Certify polls the pending transaction. "Not yet confirmed" is the normal
// waiting outcome and changes nothing. On confirmation the certificate is
// verified, chained, persisted, and the pending txn cleared.
func (m *Machine) Certify(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.store.Load()
	if err != nil {
		return err
	}
	if st.Pending == "" {
		log.Debugw("certify: nothing in flight", "market", st.ID)
		return nil
	}

	c, err := m.client.Certify(ctx, st.Pending)
	if err != nil {
		log.Warnw("certify failed, will retry next tick", "market", st.ID, "txn", st.Pending, "err", err)
		return nil
	}
	if c == nil {
		log.Debugw("certify: still unconfirmed", "market", st.ID, "txn", st.Pending)
		return nil
	}

	if c.Txn.ID != st.Pending {
		return fmt.Errorf("admin: certificate %s certifies txn %q, expected %q", c.ID, c.Txn.ID, st.Pending)
	}
	if _, err := cert.VerifySignature(c); err != nil {
		return fmt.Errorf("admin: certificate %s signature rejected: %w", c.ID, err)
	}

	var prev *cert.Certificate
	if st.LatestCert != "" {
		prev, err = m.certs.Get(st.LatestCert)
		if err != nil {
			return err
		}
	}
	if err := cert.ValidateChain(c, prev); err != nil {
		return fmt.Errorf("admin: certificate %s rejected: %w", c.ID, err)
	}

	if err := m.certs.Put(c); err != nil {
		return err
	}
	st.LatestCert = c.ID
	st.Pending = ""
	log.Infow("certified", "market", st.ID, "cert", c.ID, "height", c.Block.Height)
	return m.store.Save(st)
}

// NotarizeCheck is the periodic scheduling decision, run on a timer by an
// external caller. Overlapping invocations are skipped, not queued, so a
// slow archiver can never provoke duplicate register/notarize/RBF calls.
func (m *Machine) NotarizeCheck(ctx context.Context) (CheckResult, error) {
	if !m.mu.TryLock() {
		log.Debugw("notarize check already running, skipping")
		return CheckSkipped, nil
	}
	defer m.mu.Unlock()

	st, err := m.store.Load()
	if err != nil {
		return CheckNoop, err
	}

	// Never registered and nothing in flight: anchoring hasn't started.
	if st.Pending == "" && st.LatestCert == "" {
		return CheckNoop, nil
	}

	if st.Pending == "" {
		latest, err := m.certs.Get(st.LatestCert)
		if err != nil {
			return CheckNoop, err
		}
		late := m.hoursLate(latest.ConfirmedAt)
		if late < 0 {
			return CheckNoop, nil
		}
		fee := m.cfg.NotarizeMinFee + late*m.cfg.NotarizeBumpRate
		txn, err := m.notarize(ctx, fee)
		if err != nil {
			return CheckNoop, err
		}
		if txn == "" {
			// Ledger failure was swallowed; nothing is in flight, so the
			// round did not happen. Report that, not success.
			return CheckNoop, nil
		}
		return CheckNotarized, nil
	}

	// A transaction is in flight. Before any certificate exists there is no
	// schedule to be late against; wait for the initial confirmation.
	if st.LatestCert == "" {
		return CheckNoop, nil
	}
	latest, err := m.certs.Get(st.LatestCert)
	if err != nil {
		return CheckNoop, err
	}
	late := m.hoursLate(latest.ConfirmedAt)
	if late <= 0 {
		return CheckNoop, nil
	}
	fee := m.cfg.NotarizeMinFee + late*m.cfg.NotarizeBumpRate
	if fee > m.cfg.NotarizeMaxFee {
		log.Warnw("fee ceiling reached, waiting for confirmation",
			"market", st.ID, "txn", st.Pending, "fee", fee, "ceiling", m.cfg.NotarizeMaxFee)
		return CheckCeiling, nil
	}

	txn, err := m.client.ReplaceByFee(ctx, st.Pending, fee)
	if err != nil {
		log.Warnw("replace-by-fee failed, will retry next tick",
			"market", st.ID, "txn", st.Pending, "fee", fee, "err", err)
		return CheckNoop, nil
	}
	old := st.Pending
	st.Pending = txn
	if err := m.store.Save(st); err != nil {
		return CheckNoop, err
	}
	log.Infow("bumped pending txn", "market", st.ID, "old", old, "new", txn, "fee", fee)
	return CheckBumped, nil
}

// hoursLate returns whole hours past the notarize frequency for a
// certificate confirmed at t. Negative means the certificate is still fresh;
// zero means due but less than one full hour late.
func (m *Machine) hoursLate(t time.Time) int64 {
	age := m.now().Sub(t)
	freq := time.Duration(m.cfg.NotarizeFrequency) * time.Hour
	if age < freq {
		return -1
	}
	return int64((age - freq).Hours())
}

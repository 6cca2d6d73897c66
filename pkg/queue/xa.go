package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/mulecore/pkg/log"
)

// Flags accepted by XAResource.Start and End.
const (
	TMNoFlags = 0
	TMJoin    = 0x00200000
	TMSuspend = 0x02000000
	TMSuccess = 0x04000000
	TMResume  = 0x08000000
	TMFail    = 0x20000000
)

// Prepare votes.
const (
	XAOK     = 0
	XARdOnly = 3
)

// XAError codes.
const (
	XARBRollback = 100
	XAERRmErr    = -3
	XAERNotA     = -4
	XAERInval    = -5
	XAERProto    = -6
	XAERDupID    = -8
)

var (
	errUnboundResource = errors.New("resource not bound to a session")
	errAlreadyPrepared = errors.New("branch already prepared")
	errNotHeuristic    = errors.New("branch was not heuristically completed")
)

// XAError is the error returned by XAResource methods.
type XAError struct {
	Code int
	Xid  Xid
	Err  error
}

func (e *XAError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("queue: xa error %d for %s: %v", e.Code, e.Xid, e.Err)
	}
	return fmt.Sprintf("queue: xa error %d for %s", e.Code, e.Xid)
}

func (e *XAError) Unwrap() error { return e.Err }

func xaError(code int, xid Xid, err error) *XAError {
	return &XAError{Code: code, Xid: xid, Err: err}
}

// XAResource is the resource-manager side of two-phase commit. A resource
// obtained from a Session can associate transaction branches with it; one
// obtained from the Manager can only complete and recover branches.
type XAResource struct {
	m       *Manager
	session *Session
}

// XAResource returns a resource for completing and recovering branches.
func (m *Manager) XAResource() *XAResource {
	return &XAResource{m: m}
}

// IsSameRM reports whether other is backed by the same manager.
func (r *XAResource) IsSameRM(other *XAResource) bool {
	return other != nil && other.m == r.m
}

func (r *XAResource) lookup(xid Xid) (*transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	tx, ok := r.m.xa[xid.key()]
	if !ok {
		return nil, xaError(XAERNotA, xid, nil)
	}
	return tx, nil
}

func (r *XAResource) forget(xid Xid, tx *transaction) {
	r.m.mu.Lock()
	delete(r.m.xa, xid.key())
	r.m.mu.Unlock()
	if r.session != nil && r.session.tx == tx {
		r.session.tx = nil
	}
}

// Start associates branch xid with the session, creating it unless flags
// is TMJoin or TMResume.
func (r *XAResource) Start(xid Xid, flags int) error {
	if r.session == nil {
		return xaError(XAERProto, xid, errUnboundResource)
	}
	if r.session.tx != nil {
		return xaError(XAERProto, xid, ErrTransactionActive)
	}

	switch flags {
	case TMNoFlags:
		j, err := r.m.currentJournal()
		if err != nil {
			return xaError(XAERRmErr, xid, err)
		}
		tx, err := newTransaction(r.m, j)
		if err != nil {
			return xaError(XAERRmErr, xid, err)
		}
		x := xid
		tx.xid = &x

		r.m.mu.Lock()
		if _, exists := r.m.xa[xid.key()]; exists {
			r.m.mu.Unlock()
			return xaError(XAERDupID, xid, nil)
		}
		r.m.xa[xid.key()] = tx
		r.m.mu.Unlock()
		r.session.tx = tx
		return nil

	case TMJoin, TMResume:
		tx, err := r.lookup(xid)
		if err != nil {
			return err
		}
		if tx.isPrepared() {
			return xaError(XAERProto, xid, errAlreadyPrepared)
		}
		r.session.tx = tx
		return nil

	default:
		return xaError(XAERInval, xid, fmt.Errorf("unsupported start flags %#x", flags))
	}
}

// End dissociates branch xid from the session. TMFail marks the branch
// rollback-only.
func (r *XAResource) End(xid Xid, flags int) error {
	tx, err := r.lookup(xid)
	if err != nil {
		return err
	}
	if r.session != nil && r.session.tx == tx {
		r.session.tx = nil
	}
	if flags&TMFail != 0 {
		tx.markRollbackOnly()
	}
	return nil
}

// Prepare logs branch xid as in doubt. A branch without operations is
// completed at once and reported read-only.
func (r *XAResource) Prepare(xid Xid) (int, error) {
	tx, err := r.lookup(xid)
	if err != nil {
		return 0, err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.prepared {
		return 0, xaError(XAERProto, xid, errAlreadyPrepared)
	}
	if tx.done {
		return 0, xaError(XAERNotA, xid, ErrTransactionEnded)
	}
	if tx.rollbackOnly {
		r.forget(xid, tx)
		if err := tx.rollbackLocked(); err != nil {
			return 0, xaError(XAERRmErr, xid, err)
		}
		return 0, xaError(XARBRollback, xid, nil)
	}
	if tx.isEmptyLocked() {
		r.forget(xid, tx)
		if err := tx.commitLocked(); err != nil {
			return 0, xaError(XAERRmErr, xid, err)
		}
		return XARdOnly, nil
	}

	data, err := xid.MarshalBinary()
	if err != nil {
		return 0, xaError(XAERInval, xid, err)
	}
	if err := tx.journal.LogPrepare(tx.id, data); err != nil {
		return 0, xaError(XAERRmErr, xid, err)
	}
	tx.prepared = true
	r.m.metrics.transaction(OutcomePrepare)
	r.m.logger.Debug("xa branch prepared", log.String("xid", xid.String()))
	return XAOK, nil
}

// Commit completes branch xid. onePhase commits a branch that was never
// prepared.
func (r *XAResource) Commit(xid Xid, onePhase bool) error {
	tx, err := r.lookup(xid)
	if err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return xaError(XAERNotA, xid, ErrTransactionEnded)
	}
	if onePhase == tx.prepared {
		return xaError(XAERProto, xid, fmt.Errorf("one-phase %t on prepared %t branch", onePhase, tx.prepared))
	}
	r.forget(xid, tx)
	if tx.rollbackOnly {
		if err := tx.rollbackLocked(); err != nil {
			return xaError(XAERRmErr, xid, err)
		}
		return xaError(XARBRollback, xid, nil)
	}
	if err := tx.commitLocked(); err != nil {
		return xaError(XAERRmErr, xid, err)
	}
	return nil
}

// Rollback undoes branch xid.
func (r *XAResource) Rollback(xid Xid) error {
	tx, err := r.lookup(xid)
	if err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return xaError(XAERNotA, xid, ErrTransactionEnded)
	}
	r.forget(xid, tx)
	if err := tx.rollbackLocked(); err != nil {
		return xaError(XAERRmErr, xid, err)
	}
	return nil
}

// Recover returns the prepared branches awaiting completion.
func (r *XAResource) Recover() ([]Xid, error) {
	if _, err := r.m.currentJournal(); err != nil {
		return nil, xaError(XAERRmErr, Xid{}, err)
	}
	r.m.mu.Lock()
	branches := make([]*transaction, 0, len(r.m.xa))
	for _, tx := range r.m.xa {
		branches = append(branches, tx)
	}
	r.m.mu.Unlock()

	var out []Xid
	for _, tx := range branches {
		if tx.isPrepared() {
			out = append(out, *tx.xid)
		}
	}
	return out, nil
}

// Forget is only valid for heuristically completed branches, which this
// resource never produces.
func (r *XAResource) Forget(xid Xid) error {
	if _, err := r.lookup(xid); err != nil {
		return err
	}
	return xaError(XAERProto, xid, errNotHeuristic)
}

// SetTransactionTimeout records the branch timeout requested by the
// transaction manager.
func (r *XAResource) SetTransactionTimeout(d time.Duration) bool {
	if d < 0 {
		return false
	}
	r.m.mu.Lock()
	r.m.xaTimeout = d
	r.m.mu.Unlock()
	return true
}

// TransactionTimeout returns the recorded branch timeout.
func (r *XAResource) TransactionTimeout() time.Duration {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.xaTimeout
}

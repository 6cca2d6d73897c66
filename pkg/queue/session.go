package queue

// Session is one caller's handle on the queue manager. It carries at most
// one transaction, local or XA. A Session must not be shared between
// goroutines.
type Session struct {
	m  *Manager
	tx *transaction
}

// Queue returns a handle on queue name, creating the queue on first use.
func (s *Session) Queue(name string) (*Queue, error) {
	q, err := s.m.queue(name)
	if err != nil {
		return nil, err
	}
	return &Queue{s: s, info: q}, nil
}

// Begin starts a local transaction.
func (s *Session) Begin() error {
	if s.tx != nil {
		return ErrTransactionActive
	}
	j, err := s.m.currentJournal()
	if err != nil {
		return err
	}
	if !s.m.opts.journal {
		j = nil
	}
	tx, err := newTransaction(s.m, j)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

// Commit makes the transaction's staged operations visible.
func (s *Session) Commit() error {
	if s.tx == nil || s.tx.xid != nil {
		return ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return tx.commit()
}

// Rollback discards staged operations and restores taken items.
func (s *Session) Rollback() error {
	if s.tx == nil || s.tx.xid != nil {
		return ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return tx.rollback()
}

// DisposeQueue deletes queue name, at commit when a transaction is active.
func (s *Session) DisposeQueue(name string) error {
	q, err := s.Queue(name)
	if err != nil {
		return err
	}
	return q.Dispose()
}

// InTransaction reports whether a transaction is associated with the session.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// XAResource returns an XA resource bound to this session.
func (s *Session) XAResource() *XAResource {
	return &XAResource{m: s.m, session: s}
}

func (s *Session) context() txContext {
	if s.tx != nil {
		return s.tx
	}
	return autoCommit{m: s.m}
}

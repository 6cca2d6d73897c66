package queue

import (
	"github.com/bft-labs/mulecore/pkg/journal"
	"github.com/bft-labs/mulecore/pkg/log"
)

// recover settles the transactions the journal left open. Unprepared ones
// are rolled back; prepared ones are rebuilt and kept for Recover.
func (m *Manager) recover() error {
	j := m.journal
	for _, p := range j.Pending() {
		tx := newTransactionWithID(m, p.ID, j)
		if err := m.replay(tx, p.Entries); err != nil {
			return err
		}

		if !p.Prepared {
			if err := tx.rollback(); err != nil {
				return err
			}
			m.logger.Info("rolled back interrupted transaction",
				log.String("tx", p.ID.String()),
				log.Int("operations", len(p.Entries)),
			)
			continue
		}

		var xid Xid
		if err := xid.UnmarshalBinary(p.Xid); err != nil {
			m.logger.Warn("dropping prepared transaction with unreadable xid",
				log.String("tx", p.ID.String()),
				log.Err(err),
			)
			if err := tx.rollback(); err != nil {
				return err
			}
			continue
		}
		tx.xid = &xid
		tx.prepared = true
		m.mu.Lock()
		m.xa[xid.key()] = tx
		m.mu.Unlock()
		m.logger.Info("recovered prepared transaction",
			log.String("tx", p.ID.String()),
			log.String("xid", xid.String()),
		)
	}
	return nil
}

// replay rebuilds the staged state of tx from its journal entries. Entries
// for queues that do not survive a restart are skipped. tx is not yet
// shared, so its lock is not taken.
func (m *Manager) replay(tx *transaction, entries []journal.Entry) error {
	for _, e := range entries {
		q, err := m.queue(e.Queue)
		if err != nil {
			return err
		}
		if !q.store.IsPersistent() {
			continue
		}
		tx.touchLocked(q)
		switch e.Kind {
		case journal.KindAdd:
			tx.added[q.name] = append(tx.added[q.name], stagedItem{value: e.Value})
		case journal.KindAddFirst:
			tx.added[q.name] = append(tx.added[q.name], stagedItem{value: e.Value, first: true})
		case journal.KindConsume:
			if staged := tx.added[q.name]; len(staged) > 0 {
				tx.added[q.name] = staged[:len(staged)-1]
			}
		case journal.KindRemove:
			tx.removed[q.name] = append(tx.removed[q.name], e.Value)
		}
	}
	return nil
}

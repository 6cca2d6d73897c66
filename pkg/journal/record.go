package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gofrs/uuid/v5"
)

// Kind identifies a journal record.
type Kind byte

const (
	KindAdd Kind = iota + 1
	KindAddFirst
	KindRemove
	// KindConsume marks the most recent staged add of a queue as taken
	// back by its own transaction.
	KindConsume
	KindPrepare
	KindCommit
	KindRollback
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindAddFirst:
		return "addFirst"
	case KindRemove:
		return "remove"
	case KindConsume:
		return "consume"
	case KindPrepare:
		return "prepare"
	case KindCommit:
		return "commit"
	case KindRollback:
		return "rollback"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

func (k Kind) valid() bool { return k >= KindAdd && k <= KindRollback }

// terminal reports whether k ends a transaction.
func (k Kind) terminal() bool { return k == KindCommit || k == KindRollback }

// Entry is one journal record.
type Entry struct {
	Kind  Kind
	Tx    uuid.UUID
	Queue string
	Value []byte
}

var (
	ErrCorrupt      = errors.New("journal: corrupt record")
	ErrQueueTooLong = errors.New("journal: queue name too long")
	ErrClosed       = errors.New("journal: closed")
	errShortRecord  = errors.New("journal: short record")
)

const (
	fixedSize    = 1 + uuid.Size + 2 + 4
	maxValueSize = 1 << 30
)

func (e Entry) encode() ([]byte, error) {
	if len(e.Queue) > math.MaxUint16 {
		return nil, ErrQueueTooLong
	}
	buf := make([]byte, 0, fixedSize+len(e.Queue)+len(e.Value))
	buf = append(buf, byte(e.Kind))
	buf = append(buf, e.Tx.Bytes()...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(e.Queue)))
	buf = append(buf, e.Queue...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Value)))
	buf = append(buf, e.Value...)
	return buf, nil
}

// decode reads one record from r. It returns io.EOF at a clean end and
// errShortRecord when the record is cut short.
func decode(r io.Reader) (Entry, int64, error) {
	var head [1 + uuid.Size + 2]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return Entry{}, 0, io.EOF
		}
		return Entry{}, 0, errShortRecord
	}

	e := Entry{Kind: Kind(head[0])}
	if !e.Kind.valid() {
		return Entry{}, 0, ErrCorrupt
	}
	copy(e.Tx[:], head[1:1+uuid.Size])

	queue := make([]byte, binary.BigEndian.Uint16(head[1+uuid.Size:]))
	if _, err := io.ReadFull(r, queue); err != nil {
		return Entry{}, 0, errShortRecord
	}
	e.Queue = string(queue)

	var vlen [4]byte
	if _, err := io.ReadFull(r, vlen[:]); err != nil {
		return Entry{}, 0, errShortRecord
	}
	length := binary.BigEndian.Uint32(vlen[:])
	if length > maxValueSize {
		return Entry{}, 0, ErrCorrupt
	}
	if length > 0 {
		e.Value = make([]byte, length)
		if _, err := io.ReadFull(r, e.Value); err != nil {
			return Entry{}, 0, errShortRecord
		}
	}
	return e, int64(fixedSize + len(queue) + int(length)), nil
}

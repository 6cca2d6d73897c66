package queue

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var errBadXid = errors.New("queue: malformed xid")

// Xid identifies a transaction branch handed out by a transaction manager.
type Xid struct {
	FormatID            int32
	GlobalTransactionID []byte
	BranchQualifier     []byte
}

func (x Xid) String() string {
	return fmt.Sprintf("%d:%x:%x", x.FormatID, x.GlobalTransactionID, x.BranchQualifier)
}

// MarshalBinary encodes x as [format int32][uint16 len][gtrid][uint16 len][bqual].
func (x Xid) MarshalBinary() ([]byte, error) {
	if len(x.GlobalTransactionID) > math.MaxUint16 || len(x.BranchQualifier) > math.MaxUint16 {
		return nil, errBadXid
	}
	buf := make([]byte, 0, 8+len(x.GlobalTransactionID)+len(x.BranchQualifier))
	buf = binary.BigEndian.AppendUint32(buf, uint32(x.FormatID))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(x.GlobalTransactionID)))
	buf = append(buf, x.GlobalTransactionID...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(x.BranchQualifier)))
	buf = append(buf, x.BranchQualifier...)
	return buf, nil
}

// UnmarshalBinary decodes the MarshalBinary encoding.
func (x *Xid) UnmarshalBinary(data []byte) error {
	if len(data) < 6 {
		return errBadXid
	}
	format := int32(binary.BigEndian.Uint32(data))
	data = data[4:]

	glen := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < glen+2 {
		return errBadXid
	}
	gtrid := append([]byte(nil), data[:glen]...)
	data = data[glen:]

	blen := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) != blen {
		return errBadXid
	}
	*x = Xid{
		FormatID:            format,
		GlobalTransactionID: gtrid,
		BranchQualifier:     append([]byte(nil), data...),
	}
	return nil
}

func (x Xid) key() string {
	b, err := x.MarshalBinary()
	if err != nil {
		return x.String()
	}
	return string(b)
}

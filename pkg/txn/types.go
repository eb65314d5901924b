package txn

// XID is a transaction id.
type XID uint64

const (
	// InvalidXID marks an aborted or never-assigned writer/deleter.
	InvalidXID XID = 0
	// FrozenXID is older than every snapshot.
	FrozenXID XID = 2
	// FirstNormalXID is the first id the allocator hands out.
	FirstNormalXID XID = 3
)

func (x XID) IsValid() bool {
	return x != InvalidXID
}

// IsNormal reports whether x is an ordinary allocated id, neither invalid
// nor frozen.
func (x XID) IsNormal() bool {
	return x >= FirstNormalXID
}

// CID is a command id within one transaction.
type CID uint32

// State of a transaction.
type State int32

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

// XactEvent distinguishes the two callback occasions.
type XactEvent int8

const (
	EventCommit XactEvent = iota
	EventAbort
)

// XactCallback runs synchronously inside commit/abort, after the
// transaction left the in-progress set.
type XactCallback func(event XactEvent, txn *Txn)

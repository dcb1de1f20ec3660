package database

// AccessMode is the access mode of a transaction.
type AccessMode int

const (
	ReadWrite AccessMode = iota
	ReadOnly
)

func (m AccessMode) String() string {
	if m == ReadOnly {
		return "READ ONLY"
	}
	return "READ WRITE"
}

// Isolation is the isolation level of a transaction.
type Isolation int

const (
	IsolationDefault Isolation = iota // session default
	IsolationReadCommitted
	IsolationSerializable
)

func (i Isolation) String() string {
	switch i {
	case IsolationReadCommitted:
		return "READ COMMITTED"
	case IsolationSerializable:
		return "SERIALIZABLE"
	default:
		return "DEFAULT"
	}
}

// TxOptions selects the mode of the next unit of work.
type TxOptions struct {
	Access    AccessMode
	Isolation Isolation
}

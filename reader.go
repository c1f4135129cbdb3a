package bitpack

// Reader gives random access to a sequence of uint32 values.  It is
// implemented by Buffer (in memory), Disk (on disk, read-only) and the
// baseline vectors.
type Reader interface {
	Len() uint64
	Get(ix uint64) (uint32, error)
}

var _ Reader = (*Disk)(nil)
var _ Reader = (*Buffer)(nil)

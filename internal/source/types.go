package source

type (
	// DocID uniquely identifies a document within a DocSet.
	DocID uint32
	// DocFlags encodes metadata about a tracked document.
	DocFlags uint8
)

const (
	// DocVirtual marks a generated document (not backed by an editor buffer or disk).
	DocVirtual DocFlags = 1 << iota
	DocHadBOM
	DocNormalizedCRLF
)

// Doc captures metadata and content for one tracked document: either an
// original component file or a generated virtual document.
type Doc struct {
	ID      DocID
	URI     string
	Content []byte
	LineIdx []uint32
	Hash    [32]byte
	Flags   DocFlags
}

// LineCol represents a human-readable position in a document.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}

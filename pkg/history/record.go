// ABOUTME: Persisted record layout for the full engine state
// ABOUTME: Payloads are raw JSON of T, or base64 codec bytes when compressed

package history

import "time"

const recordVersion = 1

// record is the single document stored under Options.StorageKey.
type record struct {
	Version        int
	Codec          string
	Checksum       string
	States         []stateRecord
	Branches       []branchRecord
	CurrentStateID uint64
	ActiveBranchID string
	NextStateID    uint64
}

type stateRecord struct {
	ID          uint64
	ParentID    uint64
	BranchID    string
	Timestamp   time.Time
	Name        string
	Description string
	Metadata    metadataRecord
	Thumbnail   string
	Data        []byte
	Packed      []byte
}

type metadataRecord struct {
	Tool        string
	LayerID     string
	MemoryUsage int64
	Compressed  bool
	Attrs       map[string]string
}

type branchRecord struct {
	ID            string
	Name          string
	ParentStateID uint64
	CreatedAt     time.Time
	StateIDs      []uint64
	Active        bool
}

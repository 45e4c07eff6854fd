package namespace

import (
	"time"

	"github.com/radiantone/emerge/envelope"
)

// EntryKind is the explicit tag distinguishing directory entries from
// object entries in listings. Clients must never infer kind from string
// prefixes.
type EntryKind string

const (
	// KindDirectory tags a directory entry
	KindDirectory EntryKind = "directory"
	// KindObject tags an object entry
	KindObject EntryKind = "object"
)

// Record is one stored object: identity, location, the versioned type
// descriptor, and the encoded envelope. Records are immutable once stored;
// overwriting an id replaces the record wholesale.
type Record struct {
	ID       string        `json:"id"`
	Path     string        `json:"path"` // parent directory
	Name     string        `json:"name"`
	Type     envelope.Type `json:"type"`
	Data     []byte        `json:"data"` // envelope JSON
	Size     int64         `json:"size"`
	Perms    string        `json:"perms"`
	Created  time.Time     `json:"created"`
	Modified time.Time     `json:"modified"`
}

// FullPath returns the record's absolute path, parent plus name.
func (r *Record) FullPath() string {
	return JoinPath(r.Path, r.Name)
}

// clone returns a copy so callers can never mutate stored state through a
// returned record.
func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	copied := *r
	copied.Data = append([]byte(nil), r.Data...)
	return &copied
}

// Entry is one row of a directory listing.
type Entry struct {
	Kind     EntryKind `json:"kind"`
	Name     string    `json:"name"`
	Path     string    `json:"path"` // full path of the entry
	ID       string    `json:"id,omitempty"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// EventOp names a namespace change for watchers.
type EventOp string

const (
	// EventStore fires when an object is stored or overwritten
	EventStore EventOp = "store"
	// EventRemove fires when an object or directory is removed
	EventRemove EventOp = "remove"
	// EventMkdir fires when a directory is created
	EventMkdir EventOp = "mkdir"
)

// Event is one namespace change, delivered to watchers in occurrence order.
type Event struct {
	Op   EventOp   `json:"op"`
	Path string    `json:"path"`
	ID   string    `json:"id,omitempty"`
	Time time.Time `json:"time"`
}

// Stats is a point-in-time count of namespace contents.
type Stats struct {
	Objects     int `json:"objects"`
	Directories int `json:"directories"`
}

package gateway

import (
	"encoding/json"
	"time"

	"github.com/radiantone/emerge/engine"
	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/namespace"
)

// Operation names. One request/reply subject exists per operation.
const (
	OpHello      = "hello"
	OpGraphQL    = "graphql"
	OpSearch     = "search"
	OpSearchText = "searchtext"
	OpList       = "list"
	OpGet        = "get"
	OpGetObject  = "getobject"
	OpStore      = "store"
	OpMkdir      = "mkdir"
	OpRemove     = "rm"
	OpQuery      = "query"
	OpExecute    = "execute"
	OpDescribe   = "describe"
	OpRegister   = "register"
)

// SubjectPrefix is prepended to every operation name to form its NATS
// request subject.
const SubjectPrefix = "emerge.rpc."

// QueueGroup is the queue group all node replicas subscribe under.
const QueueGroup = "emerge-nodes"

// Subject returns the NATS request subject for an operation.
func Subject(op string) string {
	return SubjectPrefix + op
}

// Operations lists every operation the dispatcher serves.
func Operations() []string {
	return []string{
		OpHello, OpGraphQL, OpSearch, OpSearchText, OpList, OpGet,
		OpGetObject, OpStore, OpMkdir, OpRemove, OpQuery, OpExecute,
		OpDescribe, OpRegister,
	}
}

// HelloRequest greets the node, optionally carrying an echo string.
type HelloRequest struct {
	Query string `json:"query,omitempty"`
}

// HelloResponse identifies the node and its registered types.
type HelloResponse struct {
	Message string   `json:"message"`
	Node    string   `json:"node"`
	Types   []string `json:"types,omitempty"`
}

// GraphQLRequest carries a GraphQL query document.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQLResponse is the conventional GraphQL result shape.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []string        `json:"errors,omitempty"`
}

// SearchRequest carries a serialized predicate.
type SearchRequest struct {
	Predicate json.RawMessage `json:"predicate"`
}

// SearchTextRequest matches one indexed field against an exact value.
type SearchTextRequest struct {
	Field string `json:"field"`
	Query string `json:"query"`
}

// SearchResponse lists matching object ids.
type SearchResponse struct {
	IDs []string `json:"ids"`
}

// ListRequest names a directory and a result window. Size 0 means no
// limit.
type ListRequest struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Size   int    `json:"size,omitempty"`
}

// ListResponse holds the directory's kind-tagged entries.
type ListResponse struct {
	Entries []namespace.Entry `json:"entries"`
}

// GetRequest resolves an object by id or path; a directory path
// resolves to the objects inside it, windowed by offset/size (size 0
// means no limit).
type GetRequest struct {
	Target string `json:"target"`
	Offset int    `json:"offset,omitempty"`
	Size   int    `json:"size,omitempty"`
}

// RecordInfo is the wire form of a stored record, including the raw
// envelope so callers can decode locally.
type RecordInfo struct {
	ID       string          `json:"id"`
	Path     string          `json:"path"`
	Name     string          `json:"name"`
	Type     envelope.Type   `json:"type"`
	Size     int64           `json:"size"`
	Perms    string          `json:"perms"`
	Created  time.Time       `json:"created"`
	Modified time.Time       `json:"modified"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// GetResponse carries one record, or several when the target was a
// directory.
type GetResponse struct {
	Record  *RecordInfo  `json:"record,omitempty"`
	Records []RecordInfo `json:"records,omitempty"`
}

// GetObjectRequest fetches an object's payload. Raw asks for the
// undecoded envelope instead. A directory target returns the payloads
// of the objects inside it, windowed by offset/size (size 0 means no
// limit).
type GetObjectRequest struct {
	Target string `json:"target"`
	Raw    bool   `json:"raw,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Size   int    `json:"size,omitempty"`
}

// ObjectPayload is one fetched object: its type descriptor plus either
// the root payload or the raw envelope.
type ObjectPayload struct {
	Type     envelope.Type   `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Envelope json.RawMessage `json:"envelope,omitempty"`
}

// GetObjectResponse carries one object, or the Objects window when the
// target was a directory.
type GetObjectResponse struct {
	Type     envelope.Type   `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Envelope json.RawMessage `json:"envelope,omitempty"`
	Objects  []ObjectPayload `json:"objects,omitempty"`
}

// StoreRequest stores an encoded envelope at a path. The type
// descriptor is read from the envelope root.
type StoreRequest struct {
	ID   string          `json:"id"`
	Path string          `json:"path"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// StoreResponse echoes the stored object's identity.
type StoreResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// MkdirRequest creates a directory.
type MkdirRequest struct {
	Path string `json:"path"`
}

// RemoveRequest removes an object by id or path, or a directory.
type RemoveRequest struct {
	Target string `json:"target"`
}

// OKResponse acknowledges an operation with no result value.
type OKResponse struct {
	OK bool `json:"ok"`
}

// QueryRequest invokes the query method of the object at path.
type QueryRequest struct {
	Path string `json:"path"`
}

// ExecuteRequest invokes a method on the object named by id. Mode is
// "transient" or "persistent"; empty selects the node default.
type ExecuteRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Mode   string `json:"mode,omitempty"`
}

// ResultResponse carries a method or query result as raw JSON.
type ResultResponse struct {
	Result json.RawMessage `json:"result"`
}

// DescribeRequest fetches the call surface of an object.
type DescribeRequest struct {
	Target string `json:"target"`
}

// DescribeResponse lists the object's invokable methods.
type DescribeResponse struct {
	Methods []engine.Method `json:"methods"`
}

// RegisterRequest publishes a type descriptor into the registry
// directory so peers can validate payloads of that type.
type RegisterRequest struct {
	Type envelope.Type `json:"type"`
}

// RegisterResponse names the registry entry that was written.
type RegisterResponse struct {
	Path string `json:"path"`
}

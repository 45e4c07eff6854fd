package namespace

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/errors"
)

// widget is a minimal envelope object for store tests.
type widget struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
}

func (w *widget) Descriptor() envelope.Type {
	return envelope.Type{Name: "widget", Version: "v1", Schema: envelope.MustSchemaFor(&widget{})}
}

func (w *widget) Validate() error { return nil }

func (w *widget) MarshalJSON() ([]byte, error) {
	type alias widget
	return json.Marshal((*alias)(w))
}

func (w *widget) UnmarshalJSON(data []byte) error {
	type alias widget
	return json.Unmarshal(data, (*alias)(w))
}

func testRecord(t *testing.T, id, path, name string, price float64) *Record {
	t.Helper()
	obj := &widget{ID: id, Name: name, UnitPrice: price}
	data, err := envelope.EncodeBytes(obj)
	require.NoError(t, err)
	return &Record{
		ID:   id,
		Path: path,
		Name: name,
		Type: obj.Descriptor(),
		Data: data,
	}
}

func TestMkdir(t *testing.T) {
	s := NewStore(Options{})

	require.NoError(t, s.Mkdir("/classes"))

	err := s.Mkdir("/classes")
	require.Error(t, err)
	assert.True(t, errors.IsAlreadyExists(err))

	err = s.Mkdir("classes")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidPath(err))
}

func TestMkdirImplicitParents(t *testing.T) {
	s := NewStore(Options{})

	require.NoError(t, s.Mkdir("/a/b/c"))

	entries, err := s.List("/a", 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KindDirectory, entries[0].Kind)
	assert.Equal(t, "b", entries[0].Name)
}

func TestMkdirRequireParentPolicy(t *testing.T) {
	s := NewStore(Options{MkdirPolicy: MkdirRequireParent})

	err := s.Mkdir("/a/b/c")
	require.Error(t, err)
	assert.True(t, errors.IsNoSuchParent(err))

	require.NoError(t, s.Mkdir("/a"))
	require.NoError(t, s.Mkdir("/a/b"))
	require.NoError(t, s.Mkdir("/a/b/c"))
}

func TestPutAndGet(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/classes"))

	rec := testRecord(t, "myclass", "/classes", "myclass", 0)
	require.NoError(t, s.Put(rec))

	byID, _, err := s.Get("myclass")
	require.NoError(t, err)
	assert.Equal(t, "/classes/myclass", byID.FullPath())

	byPath, _, err := s.Get("/classes/myclass")
	require.NoError(t, err)
	assert.Equal(t, "myclass", byPath.ID)

	_, _, err = s.Get("/nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestPutMissingParent(t *testing.T) {
	s := NewStore(Options{})

	err := s.Put(testRecord(t, "w1", "/inventory", "w1", 1))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidPath(err))
}

func TestPutRejectsSeparatorName(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/inventory"))

	err := s.Put(testRecord(t, "w1", "/inventory", "a/b", 1))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidPath(err))

	// The rejected record must not surface in the directory listing.
	entries, err := s.List("/inventory", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPutUniqueIDMoves(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/p"))
	require.NoError(t, s.Mkdir("/q"))

	require.NoError(t, s.Put(testRecord(t, "A", "/p", "A", 1)))
	require.NoError(t, s.Put(testRecord(t, "A", "/q", "A", 2)))

	// Exactly one record with id A exists, now under /q.
	rec, _, err := s.Get("A")
	require.NoError(t, err)
	assert.Equal(t, "/q/A", rec.FullPath())

	_, _, err = s.Get("/p/A")
	assert.True(t, errors.IsNotFound(err))

	entries, err := s.List("/p", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPutOverwriteSamePath(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/inventory"))

	require.NoError(t, s.Put(testRecord(t, "w1", "/inventory", "widget", 3.0)))
	require.NoError(t, s.Put(testRecord(t, "w2", "/inventory", "widget", 4.0)))

	// The path now resolves to the new record; the old id is gone.
	rec, _, err := s.Get("/inventory/widget")
	require.NoError(t, err)
	assert.Equal(t, "w2", rec.ID)

	_, _, err = s.Get("w1")
	assert.True(t, errors.IsNotFound(err))
}

func TestGetDirectoryReturnsRecords(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/inventory"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/inventory", "w1", 1)))
	require.NoError(t, s.Put(testRecord(t, "w2", "/inventory", "w2", 2)))

	single, many, err := s.Get("/inventory")
	require.NoError(t, err)
	assert.Nil(t, single)
	require.Len(t, many, 2)
	assert.Equal(t, "w1", many[0].ID)
	assert.Equal(t, "w2", many[1].ID)
}

func TestListScenario(t *testing.T) {
	// Example scenario 1 from the protocol: mkdir, store, list.
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/classes"))
	require.NoError(t, s.Put(testRecord(t, "myclass", "/classes", "myclass", 0)))

	entries, err := s.List("/classes", 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KindObject, entries[0].Kind)
	assert.Equal(t, "myclass", entries[0].Name)
	assert.Equal(t, "myclass", entries[0].ID)
}

func TestListPagination(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/many"))
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("obj%02d", i)
		require.NoError(t, s.Put(testRecord(t, name, "/many", name, float64(i))))
	}

	all, err := s.List("/many", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 10)

	window, err := s.List("/many", 3, 4)
	require.NoError(t, err)
	require.Len(t, window, 4)
	assert.Equal(t, all[3:7], window)

	tail, err := s.List("/many", 8, 10)
	require.NoError(t, err)
	assert.Len(t, tail, 2)

	past, err := s.List("/many", 50, 5)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestListExcludesRegistryFromRoot(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/visible"))

	entries, err := s.List("/", 0, 0)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, RegistryPath, entry.Path)
	}

	// But the registry itself is listable directly.
	_, err = s.List(RegistryPath, 0, 0)
	assert.NoError(t, err)
}

func TestRemoveObject(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/inventory"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/inventory", "w1", 1)))

	require.NoError(t, s.Remove("/inventory/w1"))
	_, _, err := s.Get("w1")
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveByID(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/inventory"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/inventory", "w1", 1)))

	require.NoError(t, s.Remove("w1"))
	_, _, err := s.Get("w1")
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveNotFound(t *testing.T) {
	// Example scenario 3: rm of a nonexistent path is NotFound with a
	// non-empty message.
	s := NewStore(Options{})

	err := s.Remove("/nonexistent")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.NotEmpty(t, err.Error())
}

func TestRemoveNonEmptyDirectoryFails(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/full"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/full", "w1", 1)))

	err := s.Remove("/full")
	require.Error(t, err)

	// Still there.
	_, _, gerr := s.Get("w1")
	assert.NoError(t, gerr)
}

func TestRemoveCascadePolicy(t *testing.T) {
	s := NewStore(Options{RemovePolicy: RemoveCascade})
	require.NoError(t, s.Mkdir("/full/deep"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/full", "w1", 1)))
	require.NoError(t, s.Put(testRecord(t, "w2", "/full/deep", "w2", 2)))

	require.NoError(t, s.Remove("/full"))

	_, _, err := s.Get("w1")
	assert.True(t, errors.IsNotFound(err))
	_, _, err = s.Get("w2")
	assert.True(t, errors.IsNotFound(err))
	_, err = s.List("/full", 0, 0)
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveEmptyDirectory(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/empty"))
	require.NoError(t, s.Remove("/empty"))

	_, err := s.List("/empty", 0, 0)
	assert.True(t, errors.IsNotFound(err))
}

func TestReservedDirectoriesNotRemovable(t *testing.T) {
	s := NewStore(Options{RemovePolicy: RemoveCascade})

	for _, path := range []string{RootPath, RegistryPath} {
		err := s.Remove(path)
		require.Error(t, err, "removing %s must fail", path)
	}
}

func TestSearchText(t *testing.T) {
	// Example scenario 4: searchtext on an indexed field.
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/inventory"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/inventory", "widget", 3.0)))
	require.NoError(t, s.Put(testRecord(t, "w2", "/inventory", "widget", 5.0)))
	require.NoError(t, s.Put(testRecord(t, "g1", "/inventory", "gadget", 7.0)))

	assert.Equal(t, []string{"w1", "w2"}, s.SearchText("name", "widget"))
	assert.Equal(t, []string{"g1"}, s.SearchText("name", "gadget"))
	assert.Empty(t, s.SearchText("name", "sprocket"))
	assert.Empty(t, s.SearchText("nosuchfield", "widget"))
}

func TestSearchTextNumericCanonicalForm(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/inventory"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/inventory", "widget", 3.0)))

	assert.Equal(t, []string{"w1"}, s.SearchText("unit_price", "3"))
}

func TestSearchTextIndexMaintainedOnRemove(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/inventory"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/inventory", "widget", 3.0)))
	require.NoError(t, s.Remove("w1"))

	assert.Empty(t, s.SearchText("name", "widget"))
}

func TestSearchTextIndexMaintainedOnOverwrite(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/inventory"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/inventory", "widget", 3.0)))
	require.NoError(t, s.Put(testRecord(t, "w1", "/inventory", "sprocket", 3.0)))

	assert.Empty(t, s.SearchText("name", "widget"))
	assert.Equal(t, []string{"w1"}, s.SearchText("name", "sprocket"))
}

func TestRecordsSnapshot(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/a/b"))
	require.NoError(t, s.Put(testRecord(t, "z", "/a", "z", 1)))
	require.NoError(t, s.Put(testRecord(t, "m", "/a/b", "m", 2)))

	records, err := s.Records("/")
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Sorted by id.
	assert.Equal(t, "m", records[0].ID)
	assert.Equal(t, "z", records[1].ID)

	scoped, err := s.Records("/a/b")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "m", scoped[0].ID)
}

func TestStats(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/a/b"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/a", "w1", 1)))

	stats := s.Stats()
	assert.Equal(t, 1, stats.Objects)
	// /registry, /a, /a/b
	assert.Equal(t, 3, stats.Directories)
}

func TestWatch(t *testing.T) {
	s := NewStore(Options{})
	events, cancel := s.Watch(8)
	defer cancel()

	require.NoError(t, s.Mkdir("/watched"))
	require.NoError(t, s.Put(testRecord(t, "w1", "/watched", "w1", 1)))
	require.NoError(t, s.Remove("w1"))

	got := []Event{<-events, <-events, <-events}
	assert.Equal(t, EventMkdir, got[0].Op)
	assert.Equal(t, "/watched", got[0].Path)
	assert.Equal(t, EventStore, got[1].Op)
	assert.Equal(t, "w1", got[1].ID)
	assert.Equal(t, EventRemove, got[2].Op)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := NewStore(Options{})
	require.NoError(t, s.Mkdir("/hot"))

	records := make([]*Record, 200)
	for i := range records {
		id := fmt.Sprintf("obj%d", i)
		records[i] = testRecord(t, id, "/hot", id, float64(i))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, rec := range records {
			_ = s.Put(rec)
		}
	}()

	for i := 0; i < 200; i++ {
		_, _ = s.List("/hot", 0, 0)
		_, _, _ = s.Get("/hot")
	}
	<-done

	entries, err := s.List("/hot", 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 200)
}

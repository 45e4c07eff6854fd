package namespace

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/radiantone/emerge/errors"
)

// RemovePolicy controls what Remove does when the target is a non-empty
// directory.
type RemovePolicy int

const (
	// RemoveFailNonEmpty rejects removal of non-empty directories (default)
	RemoveFailNonEmpty RemovePolicy = iota
	// RemoveCascade removes a directory together with everything below it
	RemoveCascade
)

// MkdirPolicy controls how Mkdir treats missing parent directories.
type MkdirPolicy int

const (
	// MkdirImplicitParents creates missing parents on the way down (default)
	MkdirImplicitParents MkdirPolicy = iota
	// MkdirRequireParent fails with NoSuchParent when the parent is missing
	MkdirRequireParent
)

// Options configures a Store instance.
type Options struct {
	RemovePolicy RemovePolicy
	MkdirPolicy  MkdirPolicy
	Logger       *slog.Logger
}

// dir is one directory node in the namespace tree.
type dir struct {
	name    string
	path    string
	created time.Time
	dirs    map[string]*dir
	objects map[string]*Record // keyed by name
}

func newDir(name, path string) *dir {
	return &dir{
		name:    name,
		path:    path,
		created: time.Now().UTC(),
		dirs:    make(map[string]*dir),
		objects: make(map[string]*Record),
	}
}

// empty reports whether the directory has no children.
func (d *dir) empty() bool {
	return len(d.dirs) == 0 && len(d.objects) == 0
}

// Store owns one node's namespace. It is an explicitly owned instance
// passed to every component that needs it; there is no process-global
// namespace state.
type Store struct {
	mu       sync.RWMutex
	root     *dir
	byID     map[string]*Record
	index    *fieldIndex
	policy   RemovePolicy
	mkdirPol MkdirPolicy
	logger   *slog.Logger

	watchMu   sync.Mutex
	watchers  map[int]chan Event
	nextWatch int
}

// NewStore creates a namespace containing the reserved directories.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		root:     newDir("", RootPath),
		byID:     make(map[string]*Record),
		index:    newFieldIndex(),
		policy:   opts.RemovePolicy,
		mkdirPol: opts.MkdirPolicy,
		logger:   logger,
		watchers: make(map[int]chan Event),
	}

	// Reserved registry area. Seeded directly; Mkdir would emit a watch
	// event for a directory users never created.
	registry := newDir("registry", RegistryPath)
	s.root.dirs["registry"] = registry

	return s
}

// lookupDir resolves a directory path under the read or write lock.
func (s *Store) lookupDir(path string) *dir {
	current := s.root
	for _, segment := range SplitPath(path) {
		next, ok := current.dirs[segment]
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

// Mkdir creates a directory entry at path. Missing parents are created
// implicitly under the default policy; under MkdirRequireParent a missing
// parent fails with NoSuchParent. Creating a path that already denotes a
// directory fails with AlreadyExists.
func (s *Store) Mkdir(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if path == RootPath {
		return errors.AlreadyExists("Store", "Mkdir", "root directory already exists")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	segments := SplitPath(path)
	current := s.root
	currentPath := ""

	for i, segment := range segments {
		currentPath += "/" + segment
		last := i == len(segments)-1

		if _, taken := current.objects[segment]; taken {
			return errors.InvalidPath("Store", "Mkdir",
				fmt.Sprintf("%s denotes an object, not a directory", currentPath))
		}

		next, exists := current.dirs[segment]
		switch {
		case exists && last:
			return errors.AlreadyExists("Store", "Mkdir",
				fmt.Sprintf("%s already exists", path))
		case !exists && !last && s.mkdirPol == MkdirRequireParent:
			return errors.NoSuchParent("Store", "Mkdir",
				fmt.Sprintf("parent directory %s does not exist", currentPath))
		case !exists:
			next = newDir(segment, currentPath)
			current.dirs[segment] = next
		}
		current = next
	}

	s.logger.Debug("directory created", "path", path)
	s.notify(Event{Op: EventMkdir, Path: path, Time: time.Now().UTC()})
	return nil
}

// Put inserts or overwrites a record under its declared path and id.
// The parent directory must already exist. Ids are unique node-wide:
// putting an id that lives elsewhere moves the record to the new path.
func (s *Store) Put(rec *Record) error {
	if rec == nil {
		return errors.Internal("Store", "Put", "record cannot be nil")
	}
	if rec.ID == "" {
		return errors.InvalidPath("Store", "Put", "record id cannot be empty")
	}
	if rec.Name == "" {
		return errors.InvalidPath("Store", "Put", "record name cannot be empty")
	}
	// A separator inside the name would advertise a full path that no
	// lookup can resolve.
	if strings.Contains(rec.Name, "/") {
		return errors.InvalidPath("Store", "Put",
			fmt.Sprintf("record name %q cannot contain %q", rec.Name, "/"))
	}
	if err := ValidatePath(rec.Path); err != nil {
		return err
	}
	if err := ValidatePath(rec.FullPath()); err != nil {
		return err
	}

	stored := rec.clone()
	now := time.Now().UTC()
	stored.Modified = now
	if stored.Size == 0 {
		stored.Size = int64(len(stored.Data))
	}
	if stored.Perms == "" {
		stored.Perms = "-rw-rw-rw-"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.lookupDir(stored.Path)
	if parent == nil {
		return errors.InvalidPath("Store", "Put",
			fmt.Sprintf("parent directory %s does not exist", stored.Path))
	}
	if _, taken := parent.dirs[stored.Name]; taken {
		return errors.AlreadyExists("Store", "Put",
			fmt.Sprintf("%s denotes a directory", stored.FullPath()))
	}

	// Same id stored before: detach from its previous location and keep
	// its creation time. Exactly one record per id ever exists.
	if prev, exists := s.byID[stored.ID]; exists {
		stored.Created = prev.Created
		if prevParent := s.lookupDir(prev.Path); prevParent != nil {
			delete(prevParent.objects, prev.Name)
		}
		s.index.remove(prev.ID)
	} else {
		stored.Created = now
	}

	// Overwriting a different record at the same full path replaces it.
	if other, occupied := parent.objects[stored.Name]; occupied && other.ID != stored.ID {
		delete(s.byID, other.ID)
		s.index.remove(other.ID)
	}

	parent.objects[stored.Name] = stored
	s.byID[stored.ID] = stored
	s.index.add(stored)

	s.logger.Debug("object stored", "id", stored.ID, "path", stored.FullPath())
	s.notify(Event{Op: EventStore, Path: stored.FullPath(), ID: stored.ID, Time: now})
	return nil
}

// Remove deletes the object or directory at pathOrID. Object ids are
// accepted as well as paths. Removing a non-empty directory follows the
// store's RemovePolicy; reserved directories are never removable.
func (s *Store) Remove(pathOrID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Id form first: ids are not slash-prefixed.
	if rec, ok := s.byID[pathOrID]; ok {
		s.removeRecord(rec)
		return nil
	}

	if err := ValidatePath(pathOrID); err != nil {
		return errors.NotFound("Store", "Remove",
			fmt.Sprintf("nothing exists at %q", pathOrID))
	}
	if reserved(pathOrID) {
		return errors.InvalidPath("Store", "Remove",
			fmt.Sprintf("%s is reserved and cannot be removed", pathOrID))
	}

	parent := s.lookupDir(ParentPath(pathOrID))
	if parent == nil {
		return errors.NotFound("Store", "Remove",
			fmt.Sprintf("nothing exists at %s", pathOrID))
	}

	name := BaseName(pathOrID)
	if rec, ok := parent.objects[name]; ok {
		s.removeRecord(rec)
		return nil
	}

	target, ok := parent.dirs[name]
	if !ok {
		return errors.NotFound("Store", "Remove",
			fmt.Sprintf("nothing exists at %s", pathOrID))
	}

	if !target.empty() && s.policy == RemoveFailNonEmpty {
		return errors.AlreadyExists("Store", "Remove",
			fmt.Sprintf("directory %s is not empty", pathOrID))
	}

	s.removeTree(target)
	delete(parent.dirs, name)
	s.logger.Debug("directory removed", "path", pathOrID)
	s.notify(Event{Op: EventRemove, Path: pathOrID, Time: time.Now().UTC()})
	return nil
}

// removeRecord detaches one object. Caller holds the write lock.
func (s *Store) removeRecord(rec *Record) {
	if parent := s.lookupDir(rec.Path); parent != nil {
		delete(parent.objects, rec.Name)
	}
	delete(s.byID, rec.ID)
	s.index.remove(rec.ID)
	s.logger.Debug("object removed", "id", rec.ID, "path", rec.FullPath())
	s.notify(Event{Op: EventRemove, Path: rec.FullPath(), ID: rec.ID, Time: time.Now().UTC()})
}

// removeTree detaches every record below a directory. Caller holds the
// write lock; used by cascade removal.
func (s *Store) removeTree(d *dir) {
	for _, rec := range d.objects {
		delete(s.byID, rec.ID)
		s.index.remove(rec.ID)
	}
	d.objects = make(map[string]*Record)
	for name, sub := range d.dirs {
		s.removeTree(sub)
		delete(d.dirs, name)
	}
}

// Get resolves one record by object id or full path. A directory path
// resolves to every object directly inside it. Fails with NotFound when
// nothing exists at the target.
func (s *Store) Get(idOrPath string) (*Record, []*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.byID[idOrPath]; ok {
		return rec.clone(), nil, nil
	}

	if err := ValidatePath(idOrPath); err != nil {
		return nil, nil, errors.NotFound("Store", "Get",
			fmt.Sprintf("no object with id or path %q", idOrPath))
	}

	if target := s.lookupDir(idOrPath); target != nil {
		records := make([]*Record, 0, len(target.objects))
		for _, rec := range target.objects {
			records = append(records, rec.clone())
		}
		sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
		return nil, records, nil
	}

	parent := s.lookupDir(ParentPath(idOrPath))
	if parent != nil {
		if rec, ok := parent.objects[BaseName(idOrPath)]; ok {
			return rec.clone(), nil, nil
		}
	}

	return nil, nil, errors.NotFound("Store", "Get",
		fmt.Sprintf("no object with id or path %q", idOrPath))
}

// List returns the immediate children of a directory as kind-tagged
// entries, sorted by name, windowed by offset/size (size 0 means no
// limit). Listing the root excludes the reserved registry directory.
// Fails with NotFound when path does not denote a directory.
func (s *Store) List(path string, offset, size int) ([]Entry, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	target := s.lookupDir(path)
	if target == nil {
		return nil, errors.NotFound("Store", "List",
			fmt.Sprintf("%s does not denote a directory", path))
	}

	entries := make([]Entry, 0, len(target.dirs)+len(target.objects))
	for name, sub := range target.dirs {
		if path == RootPath && sub.path == RegistryPath {
			continue
		}
		entries = append(entries, Entry{
			Kind:     KindDirectory,
			Name:     name,
			Path:     sub.path,
			Size:     int64(len(sub.dirs) + len(sub.objects)),
			Modified: sub.created,
		})
	}
	for name, rec := range target.objects {
		entries = append(entries, Entry{
			Kind:     KindObject,
			Name:     name,
			Path:     rec.FullPath(),
			ID:       rec.ID,
			Size:     rec.Size,
			Modified: rec.Modified,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []Entry{}, nil
	}
	end := len(entries)
	if size > 0 && offset+size < end {
		end = offset + size
	}
	return entries[offset:end], nil
}

// Records returns a snapshot of every record reachable from root, sorted
// by id. The search engine's full scan runs over this snapshot so decoding
// never holds the namespace lock.
func (s *Store) Records(root string) ([]*Record, error) {
	if err := ValidatePath(root); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := s.lookupDir(root)
	if start == nil {
		return nil, errors.NotFound("Store", "Records",
			fmt.Sprintf("%s does not denote a directory", root))
	}

	var records []*Record
	var walk func(d *dir)
	walk = func(d *dir) {
		for _, rec := range d.objects {
			records = append(records, rec.clone())
		}
		for _, sub := range d.dirs {
			walk(sub)
		}
	}
	walk(start)

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// SearchText resolves a field query against the maintained field index,
// returning matching object ids sorted ascending. Matching is exact on the
// indexed value's canonical string form.
func (s *Store) SearchText(field, query string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.lookup(field, query)
}

// Stats counts current namespace contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Objects: len(s.byID)}
	var walk func(d *dir)
	walk = func(d *dir) {
		stats.Directories += len(d.dirs)
		for _, sub := range d.dirs {
			walk(sub)
		}
	}
	walk(s.root)
	return stats
}

// Watch subscribes to namespace change events. The returned cancel
// function must be called to release the subscription; events are dropped
// rather than blocking the store when a watcher falls behind.
func (s *Store) Watch(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	s.watchMu.Lock()
	id := s.nextWatch
	s.nextWatch++
	ch := make(chan Event, buffer)
	s.watchers[id] = ch
	s.watchMu.Unlock()

	cancel := func() {
		s.watchMu.Lock()
		if existing, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(existing)
		}
		s.watchMu.Unlock()
	}
	return ch, cancel
}

// notify fans an event out to watchers without blocking store operations.
func (s *Store) notify(event Event) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- event:
		default:
		}
	}
}

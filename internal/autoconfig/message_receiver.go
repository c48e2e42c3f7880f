package autoconfig

import "github.com/launchdarkly/go-sdk-common/v3/ldlog"

// MessageReceiver turns a potentially unreliable stream of put/patch/delete
// messages into a deduplicated sequence of Insert/Update/Delete calls against
// an ItemReceiver. A patch (Upsert) always applies, regardless of its version
// relative to what's currently stored; version is consulted only to decide
// whether a Delete is honored, per the source's own ordering contract.
//
// As a motivating example, the following messages arrive in order:
//
//	Message 1: {delete XYZ, version 2}
//	Message 2: {upsert XYZ, version 1}
//
// Message 2 still resurrects XYZ: an upsert is never discarded for being
// out of order, only a delete is.
type MessageReceiver[T Item] struct {
	seen    map[string]*versioned[T]
	sink    ItemReceiver[T]
	loggers ldlog.Loggers
}

// Item is anything that can describe itself for logging, so MessageReceiver
// can report on items it has never fully materialized (e.g. tombstones).
type Item interface {
	Describe() string
}

// ItemReceiver accepts the Insert/Update/Delete calls MessageReceiver has
// deduplicated and ordered. Calls obey:
//  1. An id is never Updated or Deleted without first being Inserted.
//  2. An id may be Updated zero or more times.
//  3. An id is Deleted at most once per intervening Insert.
type ItemReceiver[T any] interface {
	Insert(item T)
	Update(item T)
	Delete(id string)
}

type versioned[T Item] struct {
	item     T
	version  int
	entombed bool
}

func newVersioned[T Item](item T, version int) *versioned[T] {
	return &versioned[T]{item: item, version: version}
}

func newTombstone[T Item](version int) *versioned[T] {
	return &versioned[T]{version: version, entombed: true}
}

func (v *versioned[T]) entomb(version int) {
	v.entombed = true
	v.version = version
}

// update returns true if the item had been tombstoned, meaning this call is
// really a resurrection (insert), not an update.
func (v *versioned[T]) update(item T, version int) bool {
	v.item = item
	v.version = version
	resurrected := v.entombed
	v.entombed = false
	return resurrected
}

// NewMessageReceiver returns a MessageReceiver that forwards accepted
// changes to sink.
func NewMessageReceiver[T Item](sink ItemReceiver[T], loggers ldlog.Loggers) *MessageReceiver[T] {
	return &MessageReceiver[T]{
		seen:    make(map[string]*versioned[T]),
		sink:    sink,
		loggers: loggers,
	}
}

// Upsert receives an item and version and unconditionally forwards it to
// sink as an Insert or Update: a patch always applies, regardless of its
// version relative to what's currently stored. version is still recorded,
// both to tell Insert from Update (a tombstoned or never-seen id is an
// Insert) and so a later Delete can be judged against the most recently
// applied version.
func (r *MessageReceiver[T]) Upsert(id string, item T, version int) {
	current, seen := r.seen[id]

	if !seen {
		r.seen[id] = newVersioned(item, version)
		r.loggers.Infof(logMsgAddItem, item.Describe())
		r.sink.Insert(item)
		return
	}

	if resurrected := current.update(item, version); resurrected {
		r.loggers.Infof(logMsgAddItem, item.Describe())
		r.sink.Insert(item)
	} else {
		r.loggers.Infof(logMsgUpdateItem, item.Describe())
		r.sink.Update(item)
	}
}

// Delete receives an id and version, conditionally forwarding the deletion
// to sink.
func (r *MessageReceiver[T]) Delete(id string, version int) {
	current, seen := r.seen[id]

	if !seen {
		// We've never seen this id: remember the delete as a tombstone at
		// this version, so a later delete for it at a lower version is
		// recognized as out of order. A later upsert still inserts it.
		r.seen[id] = newTombstone[T](version)
		return
	}

	if version < current.version {
		r.loggers.Warnf(logMsgDeleteBadVersion, id, version, current.version)
		return
	}

	if !current.entombed {
		r.loggers.Infof(logMsgDeleteItem, current.item.Describe())
		current.entomb(version)
		r.sink.Delete(id)
		return
	}

	current.version = version
}

// Forget makes the receiver behave as if id had never been seen, issuing a
// Delete to sink first if the id is currently live.
func (r *MessageReceiver[T]) Forget(id string) {
	if current, seen := r.seen[id]; seen {
		if !current.entombed {
			r.loggers.Infof(logMsgDeleteItem, current.item.Describe())
			r.sink.Delete(id)
		}
		delete(r.seen, id)
	}
}

// Purge calls Forget on every id for which purge returns true.
func (r *MessageReceiver[T]) Purge(purge func(id string) bool) {
	for id := range r.seen {
		if purge(id) {
			r.Forget(id)
		}
	}
}

// Retain keeps every id for which retain returns true, and Forgets the rest.
// Used to reconcile the receiver's state against a fresh "put" snapshot.
func (r *MessageReceiver[T]) Retain(retain func(id string) bool) {
	r.Purge(func(id string) bool {
		return !retain(id)
	})
}

// ResetSnapshot replaces the receiver's entire seen state to match a
// "put" snapshot that the caller has already applied directly to the
// store. It does not invoke sink callbacks; the caller is responsible for
// any side effects of the replacement (e.g. the initialized hooks).
func (r *MessageReceiver[T]) ResetSnapshot(items map[string]T, version func(T) int) {
	seen := make(map[string]*versioned[T], len(items))
	for id, item := range items {
		seen[id] = newVersioned(item, version(item))
	}
	r.seen = seen
}

package schemafile

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LockFile records the ids handed out for a schema so that they survive
// edits to the definition. It is written next to the schema and checked in.
type LockFile struct {
	Namespace  string                  `yaml:"namespace"`
	SourceFile string                  `yaml:"source,omitempty"`
	Version    string                  `yaml:"version,omitempty"`
	Messages   map[string]*MessageLock `yaml:"messages,omitempty"`
	Enums      map[string]*EnumLock    `yaml:"enums,omitempty"`
	Reserved   Reserved                `yaml:"reserved,omitempty"`
}

type MessageLock struct {
	ID          uint16         `yaml:"id"`
	Fingerprint uint64         `yaml:"fingerprint,omitempty"`
	Fields      map[string]int `yaml:"fields"`
}

type EnumLock struct {
	Values map[string]int64 `yaml:"values"`
}

// Reserved holds ids of removed declarations. They are never handed out
// again, and a reserved field name cannot be declared again.
type Reserved struct {
	Messages []uint16                  `yaml:"messages,omitempty"`
	Fields   map[string]map[string]int `yaml:"fields,omitempty"`
}

func (r Reserved) IsZero() bool {
	return len(r.Messages) == 0 && len(r.Fields) == 0
}

// NewLock returns an empty lock for namespace.
func NewLock(namespace string) *LockFile {
	return &LockFile{
		Namespace: namespace,
		Messages:  make(map[string]*MessageLock),
		Enums:     make(map[string]*EnumLock),
	}
}

// LoadLock reads the lock file at path. A missing file yields an empty lock.
func LoadLock(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewLock(""), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "schemafile: read lock")
	}
	lock := NewLock("")
	if err := yaml.Unmarshal(data, lock); err != nil {
		return nil, errors.Wrapf(err, "schemafile: parse lock %s", path)
	}
	if lock.Messages == nil {
		lock.Messages = make(map[string]*MessageLock)
	}
	if lock.Enums == nil {
		lock.Enums = make(map[string]*EnumLock)
	}
	if err := lock.check(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return lock, nil
}

// check rejects entries left empty, as in "messages: {Point: }".
func (l *LockFile) check() error {
	for name, ml := range l.Messages {
		if ml == nil {
			return errors.Wrapf(ErrInvalidLock, "message %s has no entry", name)
		}
	}
	for name, el := range l.Enums {
		if el == nil {
			return errors.Wrapf(ErrInvalidLock, "enum %s has no entry", name)
		}
	}
	return nil
}

// SaveLock writes lock to path. Map keys are written in sorted order, so an
// unchanged lock produces identical bytes.
func SaveLock(path string, lock *LockFile) error {
	data, err := yaml.Marshal(lock)
	if err != nil {
		return errors.Wrap(err, "schemafile: encode lock")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "schemafile: write lock")
}

// Empty reports whether the lock records nothing yet.
func (l *LockFile) Empty() bool {
	return l == nil || (len(l.Messages) == 0 && len(l.Enums) == 0 && l.Reserved.IsZero())
}

// resolver assigns ids against an existing lock and collects the next one.
type resolver struct {
	prev *LockFile
	next *LockFile
	errs []error
}

func newResolver(f *File, prev *LockFile) *resolver {
	if prev == nil {
		prev = NewLock("")
	}
	next := NewLock(f.Namespace)
	next.SourceFile = prev.SourceFile
	next.Version = f.Version
	next.Reserved.Messages = append(next.Reserved.Messages, prev.Reserved.Messages...)
	for msg, fields := range prev.Reserved.Fields {
		for name, id := range fields {
			next.reserveField(msg, name, id)
		}
	}
	return &resolver{prev: prev, next: next}
}

func (l *LockFile) reserveField(message, name string, id int) {
	if l.Reserved.Fields == nil {
		l.Reserved.Fields = make(map[string]map[string]int)
	}
	if l.Reserved.Fields[message] == nil {
		l.Reserved.Fields[message] = make(map[string]int)
	}
	l.Reserved.Fields[message][name] = id
}

func (r *resolver) fail(err error) { r.errs = append(r.errs, err) }

// templates assigns a template id to every message: the locked id, else the
// pinned one, else one past the highest id ever handed out.
func (r *resolver) templates(defs []MessageDef) map[string]uint16 {
	taken := make(map[uint16]string)
	for _, id := range r.prev.Reserved.Messages {
		taken[id] = "(reserved)"
	}
	var max uint16
	bump := func(id uint16) {
		if id > max {
			max = id
		}
	}
	for name, ml := range r.prev.Messages {
		taken[ml.ID] = name
		bump(ml.ID)
	}
	for _, id := range r.prev.Reserved.Messages {
		bump(id)
	}

	ids := make(map[string]uint16, len(defs))
	for _, d := range defs {
		if ml, ok := r.prev.Messages[d.Name]; ok {
			if d.ID != 0 && d.ID != ml.ID {
				r.fail(errors.Wrapf(ErrIDConflict, "message %s: id %d, locked as %d", d.Name, d.ID, ml.ID))
			}
			ids[d.Name] = ml.ID
		}
	}
	for _, d := range defs {
		if _, ok := ids[d.Name]; ok || d.ID == 0 {
			continue
		}
		if owner, ok := taken[d.ID]; ok && owner != d.Name {
			r.fail(errors.Wrapf(ErrIDConflict, "message %s: id %d already held by %s", d.Name, d.ID, owner))
			continue
		}
		taken[d.ID] = d.Name
		ids[d.Name] = d.ID
		bump(d.ID)
	}
	for _, d := range defs {
		if _, ok := ids[d.Name]; ok {
			continue
		}
		if max == ^uint16(0) {
			r.fail(errors.Wrapf(ErrIDConflict, "message %s: template ids exhausted", d.Name))
			continue
		}
		max++
		taken[max] = d.Name
		ids[d.Name] = max
	}

	present := make(map[string]bool, len(defs))
	for _, d := range defs {
		present[d.Name] = true
	}
	for name, ml := range r.prev.Messages {
		if !present[name] {
			r.next.Reserved.Messages = append(r.next.Reserved.Messages, ml.ID)
		}
	}
	r.next.Reserved.Messages = dedup(r.next.Reserved.Messages)
	return ids
}

// fields assigns lock ids to the fields of one message.
func (r *resolver) fields(d MessageDef) map[string]int {
	var locked map[string]int
	if ml, ok := r.prev.Messages[d.Name]; ok {
		locked = ml.Fields
	}
	reserved := r.prev.Reserved.Fields[d.Name]

	max := 0
	for _, id := range locked {
		if id > max {
			max = id
		}
	}
	for _, id := range reserved {
		if id > max {
			max = id
		}
	}

	ids := make(map[string]int, len(d.Fields))
	for _, f := range d.Fields {
		if _, ok := reserved[f.Name]; ok {
			r.fail(errors.Wrapf(ErrReservedName, "%s.%s", d.Name, f.Name))
			continue
		}
		if id, ok := locked[f.Name]; ok {
			ids[f.Name] = id
			continue
		}
		max++
		ids[f.Name] = max
	}
	for name, id := range locked {
		if _, ok := ids[name]; !ok {
			r.next.reserveField(d.Name, name, id)
		}
	}
	return ids
}

// enum checks that locked values keep their numbers and records the enum.
func (r *resolver) enum(d EnumDef) {
	values := make(map[string]int64, len(d.Values))
	for _, v := range d.Values {
		values[v.Name] = v.Value
	}
	if el, ok := r.prev.Enums[d.Name]; ok {
		for name, v := range el.Values {
			if cur, ok := values[name]; ok && cur != v {
				r.fail(errors.Wrapf(ErrIDConflict, "enum %s.%s: value %d, locked as %d", d.Name, name, cur, v))
			}
		}
	}
	r.next.Enums[d.Name] = &EnumLock{Values: values}
}

// removedMessages reserves the fields of messages dropped from the schema.
func (r *resolver) removedMessages(defs []MessageDef) {
	present := make(map[string]bool, len(defs))
	for _, d := range defs {
		present[d.Name] = true
	}
	for name, ml := range r.prev.Messages {
		if present[name] {
			continue
		}
		for field, id := range ml.Fields {
			r.next.reserveField(name, field, id)
		}
	}
}

func dedup(ids []uint16) []uint16 {
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

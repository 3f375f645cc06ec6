package schemafile

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/rawbytedev/fcodec/pkg/schema"
)

// ErrBreakingChange is returned when a message's wire layout differs from the
// locked one while the major version stayed the same.
var ErrBreakingChange = errors.New("schemafile: layout changed without a major version bump")

const defaultEnumType = "int32"

// Build resolves ids against lock, which may be nil or empty, and validates
// the schema. It returns the schema and the lock to write back. Tags give
// the wire order; lock ids only identify fields across revisions.
func (f *File) Build(lock *LockFile) (*schema.Schema, *LockFile, error) {
	if lock != nil && lock.Namespace != "" && lock.Namespace != f.Namespace {
		return nil, nil, errors.Wrapf(ErrNamespaceMismatch, "schema %q, lock %q", f.Namespace, lock.Namespace)
	}
	if lock != nil {
		if err := lock.check(); err != nil {
			return nil, nil, err
		}
	}
	b := schema.NewBuilder(f.Namespace)
	version := schema.Version{Major: 1}
	if f.Version != "" {
		v, err := schema.ParseVersion(f.Version)
		if err != nil {
			return nil, nil, err
		}
		version = v
	}
	b.SetVersion(version)
	order, ok := schema.ParseOrder(f.Order)
	if !ok {
		return nil, nil, errors.Wrapf(ErrInvalidOrder, "%q", f.Order)
	}
	b.SetOrder(order)

	r := newResolver(f, lock)
	r.next.Version = version.String()
	if f.Path != "" {
		r.next.SourceFile = f.Path
	}

	enums := make(map[string]bool, len(f.Enums))
	for _, e := range f.Enums {
		enums[e.Name] = true
		r.enum(e)
		if err := defineEnum(b, e); err != nil {
			r.fail(err)
		}
	}

	ids := r.templates(f.Messages)
	for _, d := range f.Messages {
		fieldIDs := r.fields(d)
		fields := make([]schema.Field, 0, len(d.Fields))
		for _, fd := range d.Fields {
			t, err := fd.fieldType(enums)
			if err != nil {
				r.fail(errors.Wrapf(err, "%s.%s", d.Name, fd.Name))
				continue
			}
			fields = append(fields, schema.Field{
				Name:       fd.Name,
				Type:       t,
				Index:      fd.Tag,
				Nullable:   fd.Optional,
				Deprecated: fd.Deprecated,
				Note:       fd.Note,
				ID:         fieldIDs[fd.Name],
			})
		}
		if len(fields) != len(d.Fields) {
			continue
		}
		if err := b.DefineMessage(d.Name, fields...); err != nil {
			r.fail(err)
			continue
		}
		if id, ok := ids[d.Name]; ok {
			if err := b.SetTemplateID(d.Name, id); err != nil {
				r.fail(err)
			}
		}
		r.next.Messages[d.Name] = &MessageLock{ID: ids[d.Name], Fields: fieldIDs}
	}
	r.removedMessages(f.Messages)
	if len(r.errs) > 0 {
		return nil, nil, multierr.Combine(r.errs...)
	}

	s, err := b.Validate()
	if err != nil {
		return nil, nil, err
	}
	if err := r.fingerprints(s, version); err != nil {
		return nil, nil, err
	}
	return s, r.next, nil
}

func defineEnum(b *schema.Builder, e EnumDef) error {
	name := e.Type
	if name == "" {
		name = defaultEnumType
	}
	p, ok := schema.ParsePrimitive(name)
	if !ok {
		return errors.Wrapf(ErrInvalidType, "enum %s: underlying type %q", e.Name, e.Type)
	}
	values := make([]schema.EnumValue, len(e.Values))
	for i, v := range e.Values {
		values[i] = schema.EnumValue{Name: v.Name, Value: v.Value}
	}
	return b.DefineEnum(e.Name, p, values...)
}

// fingerprints records each message's fingerprint and refuses a changed one
// unless the major version moved.
func (r *resolver) fingerprints(s *schema.Schema, version schema.Version) error {
	var prevVersion schema.Version
	versioned := false
	if r.prev.Version != "" {
		v, err := schema.ParseVersion(r.prev.Version)
		if err != nil {
			return errors.Wrap(err, "schemafile: lock version")
		}
		prevVersion, versioned = v, true
	}
	var errs []error
	for _, m := range s.Messages() {
		r.next.Messages[m.Name()].Fingerprint = m.Fingerprint()
		ml, ok := r.prev.Messages[m.Name()]
		if !ok || ml.Fingerprint == 0 || ml.Fingerprint == m.Fingerprint() || !versioned {
			continue
		}
		if !version.BreakingChangeFrom(prevVersion) {
			errs = append(errs, errors.Wrapf(ErrBreakingChange, "message %s: version %s, locked %s",
				m.Name(), version, prevVersion))
		}
	}
	return multierr.Combine(errs...)
}

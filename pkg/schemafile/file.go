// Package schemafile reads schema definitions written in YAML and keeps the
// lock file that pins template ids and field ids across revisions.
//
//	namespace: geo
//	version: "1.0.0"
//	order: big
//	enums:
//	  - name: Side
//	    type: uint8
//	    values: [{name: Buy, value: 1}, {name: Sell, value: 2}]
//	messages:
//	  - name: Point
//	    fields:
//	      - {tag: 1, name: x, type: int32}
//	      - {tag: 2, name: y, type: int32}
//	  - name: Path
//	    id: 7
//	    fields:
//	      - {tag: 1, name: name, type: string}
//	      - {tag: 2, name: points, type: Point, repeated: true}
package schemafile

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidType       = errors.New("schemafile: invalid type")
	ErrInvalidOrder      = errors.New("schemafile: invalid byte order")
	ErrReservedName      = errors.New("schemafile: field name is reserved")
	ErrIDConflict        = errors.New("schemafile: template id conflict")
	ErrNamespaceMismatch = errors.New("schemafile: namespace does not match lock file")
	ErrInvalidLock       = errors.New("schemafile: invalid lock file")
)

// File is a parsed schema definition.
type File struct {
	Namespace string       `yaml:"namespace"`
	Version   string       `yaml:"version,omitempty"`
	Order     string       `yaml:"order,omitempty"`
	Enums     []EnumDef    `yaml:"enums,omitempty"`
	Messages  []MessageDef `yaml:"messages"`

	// Path is the file the definition was loaded from, if any.
	Path string `yaml:"-"`
}

type EnumDef struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`
	Values []EnumValueDef `yaml:"values"`
}

type EnumValueDef struct {
	Name  string `yaml:"name"`
	Value int64  `yaml:"value"`
}

type MessageDef struct {
	Name string `yaml:"name"`
	// ID pins the template id. Zero lets the lock file choose.
	ID     uint16     `yaml:"id,omitempty"`
	Fields []FieldDef `yaml:"fields"`
}

// FieldDef declares one field. Tag is the wire position; tags run from 1
// without gaps, or are all omitted to use declaration order.
type FieldDef struct {
	Tag           int    `yaml:"tag,omitempty"`
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	Optional      bool   `yaml:"optional,omitempty"`
	Repeated      bool   `yaml:"repeated,omitempty"`
	Deprecated    bool   `yaml:"deprecated,omitempty"`
	Note          string `yaml:"note,omitempty"`
	FixedCapacity *int   `yaml:"fixed_capacity,omitempty"`
}

// Parse decodes a schema definition. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "schemafile: parse")
	}
	return &f, nil
}

// Load reads and parses the schema definition at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "schemafile: read")
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	f.Path = path
	return f, nil
}

// Marshal renders f back to YAML.
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, errors.Wrap(err, "schemafile: encode")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "schemafile: encode")
	}
	return buf.Bytes(), nil
}

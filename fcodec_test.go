package fcodec

import (
	"os"
	"path/filepath"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rawbytedev/fcodec/pkg/dynamic"
	"github.com/rawbytedev/fcodec/pkg/frame"
	"github.com/rawbytedev/fcodec/pkg/schemafile"
)

const mixedYAML = `
namespace: mixed
version: "1.2.0"
messages:
  - name: Ints
    fields:
      - {name: int1, type: uint8}
      - {name: int2, type: int8}
      - {name: int3, type: uint16}
      - {name: int4, type: int16}
      - {name: int5, type: uint32}
      - {name: int6, type: int32}
      - {name: int7, type: uint64}
      - {name: int9, type: int64}
      - {name: flag, type: bool}
  - name: Lists
    fields:
      - {name: val, type: "[]string"}
      - {name: mod, type: "[]int8"}
      - {name: integers, type: "[]int16"}
      - {name: float3, type: "[]float32"}
      - {name: float6, type: "[]float64"}
`

func writeSchema(t *testing.T, src string) (schemaPath, lockPath string) {
	t.Helper()
	dir := t.TempDir()
	schemaPath = filepath.Join(dir, "mixed.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(src), 0o644))
	return schemaPath, filepath.Join(dir, "mixed.lock.yaml")
}

func TestGenerateAndLock(t *testing.T) {
	schemaPath, lockPath := writeSchema(t, mixedYAML)
	p, err := Open(schemaPath, Options{LockFile: lockPath, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "gen")
	files, err := p.Generate(out)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(out, "mixed_fcodec.go")}, files)
	src, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(src), "package mixed")
	assert.Contains(t, string(src), "// Code generated by fcodec from "+schemaPath+". DO NOT EDIT.")

	require.NoError(t, p.SaveLock())
	lock, err := schemafile.LoadLock(lockPath)
	require.NoError(t, err)
	require.Equal(t, uint16(1), lock.Messages["Ints"].ID)
	require.Equal(t, uint16(2), lock.Messages["Lists"].ID)

	// Declaring Lists first does not renumber anything.
	swapped, err := schemafile.Parse([]byte(`
namespace: mixed
version: "1.2.0"
messages:
  - name: Lists
    fields:
      - {name: val, type: "[]string"}
      - {name: mod, type: "[]int8"}
      - {name: integers, type: "[]int16"}
      - {name: float3, type: "[]float32"}
      - {name: float6, type: "[]float64"}
  - name: Ints
    fields:
      - {name: int1, type: uint8}
      - {name: int2, type: int8}
      - {name: int3, type: uint16}
      - {name: int4, type: int16}
      - {name: int5, type: uint32}
      - {name: int6, type: int32}
      - {name: int7, type: uint64}
      - {name: int9, type: int64}
      - {name: flag, type: bool}
`))
	require.NoError(t, err)
	again, err := FromFile(swapped, Options{LockFile: lockPath})
	require.NoError(t, err)
	ints, _ := again.Schema.Message("Ints")
	require.Equal(t, uint16(1), ints.TemplateID())
}

func TestSaveLockNeedsPath(t *testing.T) {
	schemaPath, _ := writeSchema(t, mixedYAML)
	p, err := Open(schemaPath, Options{})
	require.NoError(t, err)
	require.ErrorIs(t, p.SaveLock(), ErrNoLockFile)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.yaml"), Options{})
	require.Error(t, err)

	schemaPath, _ := writeSchema(t, "namespace: bad\nmessages:\n  - {name: M, fields: []}\n")
	_, err = Open(schemaPath, Options{})
	require.Error(t, err)
}

type ints struct {
	Int1 uint8
	Int2 int8
	Int3 uint16
	Int4 int16
	Int5 uint32
	Int6 int32
	Int7 uint64
	Int9 int64
	Flag bool
}

func (v ints) record() dynamic.Record {
	return dynamic.Record{
		"int1": v.Int1, "int2": v.Int2, "int3": v.Int3, "int4": v.Int4,
		"int5": v.Int5, "int6": v.Int6, "int7": v.Int7, "int9": v.Int9,
		"flag": v.Flag,
	}
}

func mixedCodecs(t testing.TB) *dynamic.Codecs {
	f, err := schemafile.Parse([]byte(mixedYAML))
	require.NoError(t, err)
	p, err := FromFile(f, Options{})
	require.NoError(t, err)
	cs, err := p.Codecs()
	require.NoError(t, err)
	return cs
}

func TestConstant(t *testing.T) {
	c, ok := mixedCodecs(t).ByName("Ints")
	require.True(t, ok)
	condition := func(z ints) bool {
		data, err := c.Marshal(z.record())
		require.NoError(t, err)
		require.Len(t, data, 31)
		res, err := c.Unmarshal(data)
		require.NoError(t, err)
		return assert.ObjectsAreEqual(z.record(), res)
	}
	require.NoError(t, quick.Check(condition, &quick.Config{}))
}

func TestConstantList(t *testing.T) {
	c, ok := mixedCodecs(t).ByName("Lists")
	require.True(t, ok)
	condition := func(val []string, mod []int8, integers []int16, f3 []float32, f6 []float64) bool {
		in := dynamic.Record{
			"val": anys(val), "mod": anys(mod), "integers": anys(integers),
			"float3": anys(f3), "float6": anys(f6),
		}
		data, err := c.Marshal(in)
		require.NoError(t, err)
		res, err := c.Unmarshal(data)
		require.NoError(t, err)
		return assert.ObjectsAreEqual(in, res)
	}
	require.NoError(t, quick.Check(condition, &quick.Config{}))
}

func anys[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func TestManagerFrames(t *testing.T) {
	f, err := schemafile.Parse([]byte(mixedYAML))
	require.NoError(t, err)
	p, err := FromFile(f, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	m, err := p.Manager(frame.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.Equal(t, []uint16{1, 2}, m.Templates())

	cs, err := p.Codecs()
	require.NoError(t, err)
	c, _ := cs.ByName("Ints")
	in := ints{Int1: 1, Int2: -2, Int3: 16, Int4: -18, Int5: 1586, Int6: -15262, Int7: 1547544565, Int9: -15484565656, Flag: true}
	data, err := m.Marshal(c.Bind(in.record()))
	require.NoError(t, err)
	require.Len(t, data, frame.HeaderSize+31)

	h, err := frame.PeekHeader(data)
	require.NoError(t, err)
	require.Equal(t, uint16(1), h.TemplateID)
	require.Equal(t, "1.2.0", h.Version().String())

	out, err := m.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, in.record(), out.(*dynamic.Value).Record)
}

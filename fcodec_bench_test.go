package fcodec

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/fcodec/pkg/dynamic"
	"github.com/rawbytedev/fcodec/pkg/wire"
)

func listsRecord() dynamic.Record {
	return dynamic.Record{
		"val":      anys([]string{"azerty", "hello", "world", "random"}),
		"mod":      anys([]int8{12, 10, 13, 1}),
		"integers": anys([]int16{100, 250, 300}),
		"float3":   anys([]float32{12.13, 16.23, 75.1}),
		"float6":   anys([]float64{100.5, 165.63, 153.5}),
	}
}

func BenchmarkDynamicEncoding(b *testing.B) {
	c, _ := mixedCodecs(b).ByName("Lists")
	r := listsRecord()
	n, err := c.Size(r)
	if err != nil {
		b.Fatal(err)
	}
	buf := wire.Wrap(make([]byte, n))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = c.Encode(r, buf, 0)
	}
}

func BenchmarkDynamicDecoding(b *testing.B) {
	c, _ := mixedCodecs(b).ByName("Lists")
	data, err := c.Marshal(listsRecord())
	if err != nil {
		b.Fatal(err)
	}
	buf := wire.Wrap(data)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Decode(buf, 0)
	}
}

func BenchmarkDynamicBasic(b *testing.B) {
	c, _ := mixedCodecs(b).ByName("Ints")
	r := ints{Int1: 1, Int2: 2, Int3: 16, Int4: 18, Int5: 1586, Int6: 15262, Int7: 1547544565, Int9: 15484565656}.record()
	buf := wire.Wrap(make([]byte, 31))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = c.Encode(r, buf, 0)
		_, _, _ = c.Decode(buf, 0)
	}
}

func BenchmarkYaml(b *testing.B) {
	z := ints{Int1: 1, Int2: 2, Int3: 16, Int4: 18, Int5: 1586, Int6: 15262, Int7: 1547544565, Int9: 15484565656}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = yaml.Marshal(z)
	}
}

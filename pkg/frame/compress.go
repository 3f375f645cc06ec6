package frame

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// compressor holds one zstd encoder and decoder. EncodeAll and DecodeAll are
// safe for concurrent use.
type compressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCompressor(maxSize int) (*compressor, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "frame: zstd encoder")
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(uint64(maxSize)),
	)
	if err != nil {
		enc.Close()
		return nil, errors.Wrap(err, "frame: zstd decoder")
	}
	return &compressor{enc: enc, dec: dec}, nil
}

func (c *compressor) compress(dst, src []byte) []byte {
	return c.enc.EncodeAll(src, dst)
}

func (c *compressor) decompress(src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, errors.Wrap(err, "frame: decompress payload")
	}
	return out, nil
}

func (c *compressor) close() error {
	c.dec.Close()
	return c.enc.Close()
}

package audit

import (
	"github.com/klauspost/compress/zstd"
)

// Stage snapshots are stored zstd-compressed. Encoder and decoder are safe
// for concurrent EncodeAll/DecodeAll calls.
var (
	snapEncoder = mustNewZstdEncoder()
	snapDecoder = mustNewZstdDecoder()
)

func mustNewZstdEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(
		nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
	)
	if err != nil {
		panic(err)
	}
	return enc
}

func mustNewZstdDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(
		nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		panic(err)
	}
	return dec
}

func compress(pix []byte) []byte {
	return snapEncoder.EncodeAll(pix, make([]byte, 0, len(pix)/2))
}

func decompress(blob []byte) ([]byte, error) {
	return snapDecoder.DecodeAll(blob, nil)
}

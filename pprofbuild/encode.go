package pprofbuild

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
)

// WriteGzip serializes the builder's profile as a gzip-compressed
// marshaled protobuf, matching the wire format pyroscope/pprof
// consumers expect. It gzips with klauspost/compress rather than the
// profile package's own (stdlib) Write, for the same throughput reasons
// the rest of this module reaches for klauspost over compress/gzip.
func (b *ProfileBuilder) WriteGzip() ([]byte, error) {
	var raw bytes.Buffer
	if err := b.prof.WriteUncompressed(&raw); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

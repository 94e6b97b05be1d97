// Package compression provides the block compressors used for checkpoint
// streams of columnar batches.
//
// # Overview
//
// A checkpoint writes each column as one block, so the package is tuned for
// whole-block Compress/Decompress of a few KB to a few MB. Streaming
// variants exist for callers that pipe a whole checkpoint through a single
// compressor.
//
// # Algorithm Selection
//
//   - Snappy/S2: best for speed, moderate compression
//   - LZ4: extremely fast, decent compression
//   - Zstd: best ratio, good speed
//   - Gzip/Deflate: wide compatibility
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Default,
//	})
//	block, err := comp.Compress(raw)
//	raw, err = comp.Decompress(block)
//
// # Pooled Usage
//
//	pool := compression.NewCompressorPool(nil)
//	block, err := pool.Compress(raw)
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/microsoft/Trill-sub013/pkg/pool"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy block compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}

// ParseAlgorithm parses an algorithm name, case-insensitively. The empty
// string selects None.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return None, nil
	}
	a := Algorithm(strings.ToLower(s))
	for _, known := range Algorithms {
		if a == known {
			return a, nil
		}
	}
	return "", trillerrors.Newf(trillerrors.ErrorTypeConfig, "unsupported compression algorithm: %s", s)
}

// ID returns the one-byte tag stored in checkpoint frames.
func (a Algorithm) ID() byte {
	for i, known := range Algorithms {
		if a == known {
			return byte(i)
		}
	}
	return 0xff
}

// AlgorithmByID is the inverse of Algorithm.ID.
func AlgorithmByID(id byte) (Algorithm, error) {
	if int(id) >= len(Algorithms) {
		return "", trillerrors.Newf(trillerrors.ErrorTypeCodec, "unknown compression id %d", id)
	}
	return Algorithms[id], nil
}

// Level represents compression level, trading speed for ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case Fastest:
		return "Fastest"
	case Default:
		return "Default"
	case Better:
		return "Better"
	case Best:
		return "Best"
	default:
		return "Unknown"
	}
}

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	// The input data is not modified.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data and returns the original bytes.
	Decompress(data []byte) ([]byte, error)

	// CompressStream compresses from reader to writer.
	CompressStream(dst io.Writer, src io.Reader) error

	// DecompressStream decompresses from reader to writer.
	DecompressStream(dst io.Writer, src io.Reader) error

	Algorithm() Algorithm
	Level() Level
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm `yaml:"algorithm" mapstructure:"algorithm"`
	Level     Level     `yaml:"level" mapstructure:"level"`
	// Concurrency bounds the number of blocks compressed at once by
	// CompressBlocks. Zero means GOMAXPROCS.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// DefaultConfig returns the default configuration: Snappy at Default level.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: Snappy,
		Level:     Default,
	}
}

// NewCompressor creates a compressor for config. A nil config uses
// DefaultConfig.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	base := baseCompressor{algorithm: config.Algorithm, level: config.Level}

	switch config.Algorithm {
	case None, "":
		base.algorithm = None
		return &noneCompressor{base}, nil
	case Gzip:
		return newGzipCompressor(base), nil
	case Snappy:
		return &snappyCompressor{base}, nil
	case LZ4:
		return &lz4Compressor{baseCompressor: base, compressionLevel: mapLZ4Level(config.Level)}, nil
	case Zstd:
		return newZstdCompressor(base), nil
	case S2:
		return &s2Compressor{base}, nil
	case Deflate:
		return &deflateCompressor{baseCompressor: base, flateLevel: mapDeflateLevel(config.Level)}, nil
	default:
		return nil, trillerrors.Newf(trillerrors.ErrorTypeConfig, "unsupported compression algorithm: %s", config.Algorithm)
	}
}

// CompressorPool reuses compressor instances. Zstd and gzip in particular
// carry expensive encoder state. CompressorPool is safe for concurrent use.
type CompressorPool struct {
	config  *Config
	objects *pool.ObjectPool[Compressor]
	err     error
}

// NewCompressorPool creates a pool for config. A nil config uses
// DefaultConfig. An invalid config surfaces on the first Compress or
// Decompress.
func NewCompressorPool(config *Config) *CompressorPool {
	if config == nil {
		config = DefaultConfig()
	}
	cp := &CompressorPool{config: config}
	if _, err := NewCompressor(config); err != nil {
		cp.err = err
	}
	cp.objects = pool.NewObjectPool(func() Compressor {
		c, _ := NewCompressor(config)
		return c
	})
	return cp
}

// Config returns the pool configuration.
func (cp *CompressorPool) Config() *Config { return cp.config }

// Get takes a compressor from the pool.
func (cp *CompressorPool) Get() (Compressor, error) {
	if cp.err != nil {
		return nil, cp.err
	}
	c, _ := cp.objects.Get()
	return c, nil
}

// Put returns a compressor to the pool.
func (cp *CompressorPool) Put(c Compressor) {
	if c != nil {
		cp.objects.Put(c)
	}
}

// Created reports how many compressors the pool has built.
func (cp *CompressorPool) Created() int64 { return cp.objects.Created() }

// Compress compresses data using a pooled compressor
func (cp *CompressorPool) Compress(data []byte) ([]byte, error) {
	c, err := cp.Get()
	if err != nil {
		return nil, err
	}
	defer cp.Put(c)
	return c.Compress(data)
}

// Decompress decompresses data using a pooled compressor
func (cp *CompressorPool) Decompress(data []byte) ([]byte, error) {
	c, err := cp.Get()
	if err != nil {
		return nil, err
	}
	defer cp.Put(c)
	return c.Decompress(data)
}

// buffers backs the writer-based codecs. Results are always copied out, so
// a buffer never escapes.
var buffers = pool.NewObjectPool(func() *bytes.Buffer { return new(bytes.Buffer) })

func getBuffer() *bytes.Buffer {
	buf, _ := buffers.Get()
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) { buffers.Put(buf) }

func detach(buf *bytes.Buffer) []byte {
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result
}

func codecError(err error, a Algorithm, op string) error {
	if err == nil {
		return nil
	}
	return trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, fmt.Sprintf("%s %s", a, op))
}

type baseCompressor struct {
	algorithm Algorithm
	level     Level
}

// Algorithm returns the compression algorithm
func (bc *baseCompressor) Algorithm() Algorithm { return bc.algorithm }

// Level returns the compression level
func (bc *baseCompressor) Level() Level { return bc.level }

// None compressor (no compression)
type noneCompressor struct {
	baseCompressor
}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

func (nc *noneCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (nc *noneCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

// Gzip compressor
type gzipCompressor struct {
	baseCompressor
	writerPool sync.Pool
	readerPool sync.Pool
}

func newGzipCompressor(base baseCompressor) *gzipCompressor {
	level := mapGzipLevel(base.level)
	gc := &gzipCompressor{baseCompressor: base}
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, level)
		return w
	}
	gc.readerPool.New = func() interface{} {
		return new(gzip.Reader)
	}
	return gc
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	w.Reset(buf)
	if _, err := w.Write(data); err != nil {
		return nil, codecError(err, Gzip, "compress")
	}
	if err := w.Close(); err != nil {
		return nil, codecError(err, Gzip, "compress")
	}
	return detach(buf), nil
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(bytes.NewReader(data)); err != nil {
		return nil, codecError(err, Gzip, "decompress")
	}

	buf := getBuffer()
	defer putBuffer(buf)
	if _, err := io.Copy(buf, r); err != nil { //nolint:gosec // G110: blocks come from our own writer
		return nil, codecError(err, Gzip, "decompress")
	}
	return detach(buf), nil
}

func (gc *gzipCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	w.Reset(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (gc *gzipCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(src); err != nil {
		return err
	}
	_, err := io.Copy(dst, r)
	return err
}

// Snappy compressor
type snappyCompressor struct {
	baseCompressor
}

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	return out, codecError(err, Snappy, "decompress")
}

func (sc *snappyCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := snappy.NewBufferedWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (sc *snappyCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, snappy.NewReader(src))
	return err
}

// LZ4 compressor
type lz4Compressor struct {
	baseCompressor
	compressionLevel lz4.CompressionLevel
}

func (lc *lz4Compressor) newWriter(dst io.Writer) (*lz4.Writer, error) {
	w := lz4.NewWriter(dst)
	if err := w.Apply(lz4.CompressionLevelOption(lc.compressionLevel)); err != nil {
		return nil, err
	}
	return w, nil
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	w, err := lc.newWriter(buf)
	if err != nil {
		return nil, codecError(err, LZ4, "compress")
	}
	if _, err := w.Write(data); err != nil {
		return nil, codecError(err, LZ4, "compress")
	}
	if err := w.Close(); err != nil {
		return nil, codecError(err, LZ4, "compress")
	}
	return detach(buf), nil
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if _, err := io.Copy(buf, lz4.NewReader(bytes.NewReader(data))); err != nil { //nolint:gosec // G110: blocks come from our own writer
		return nil, codecError(err, LZ4, "decompress")
	}
	return detach(buf), nil
}

func (lc *lz4Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := lc.newWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (lc *lz4Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, lz4.NewReader(src))
	return err
}

// Zstd compressor
type zstdCompressor struct {
	baseCompressor
	encoderPool sync.Pool
	decoderPool sync.Pool
}

func newZstdCompressor(base baseCompressor) *zstdCompressor {
	level := mapZstdLevel(base.level)
	zc := &zstdCompressor{baseCompressor: base}
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}
	return zc
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	return out, codecError(err, Zstd, "decompress")
}

func (zc *zstdCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	enc.Reset(dst)
	if _, err := io.Copy(enc, src); err != nil {
		return err
	}
	return enc.Close()
}

func (zc *zstdCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	if err := dec.Reset(src); err != nil {
		return err
	}
	_, err := io.Copy(dst, dec)
	return err
}

// S2 compressor (Snappy-compatible but better compression)
type s2Compressor struct {
	baseCompressor
}

func (sc *s2Compressor) Compress(data []byte) ([]byte, error) {
	if sc.level >= Better {
		return s2.EncodeBetter(nil, data), nil
	}
	return s2.Encode(nil, data), nil
}

func (sc *s2Compressor) Decompress(data []byte) ([]byte, error) {
	out, err := s2.Decode(nil, data)
	return out, codecError(err, S2, "decompress")
}

func (sc *s2Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := s2.NewWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (sc *s2Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, s2.NewReader(src))
	return err
}

// Deflate compressor
type deflateCompressor struct {
	baseCompressor
	flateLevel int
}

func (dc *deflateCompressor) Compress(data []byte) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	w, err := flate.NewWriter(buf, dc.flateLevel)
	if err != nil {
		return nil, codecError(err, Deflate, "compress")
	}
	if _, err := w.Write(data); err != nil {
		return nil, codecError(err, Deflate, "compress")
	}
	if err := w.Close(); err != nil {
		return nil, codecError(err, Deflate, "compress")
	}
	return detach(buf), nil
}

func (dc *deflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	buf := getBuffer()
	defer putBuffer(buf)
	if _, err := io.Copy(buf, r); err != nil { //nolint:gosec // G110: blocks come from our own writer
		return nil, codecError(err, Deflate, "decompress")
	}
	return detach(buf), nil
}

func (dc *deflateCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := flate.NewWriter(dst, dc.flateLevel)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (dc *deflateCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := flate.NewReader(src)
	defer r.Close()

	_, err := io.Copy(dst, r)
	return err
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

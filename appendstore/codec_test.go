package appendstore

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert"
)

func TestJSONIndentedReadsCompact(t *testing.T) {
	recs := genRandomRecords(20)
	d, err := JSONIndented[testRecord]().Marshal(recs)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(d), "\n"))
	got, err := JSON[testRecord]().Unmarshal(d)
	assert.NoError(t, err)
	assert.Equal(t, recs, got)
}

func TestCompressedCodecs(t *testing.T) {
	recs := genRandomRecords(500)
	plain, err := JSON[testRecord]().Marshal(recs)
	assert.NoError(t, err)

	for _, comp := range []Compression{CompressionNone, CompressionZstd, CompressionBrotli} {
		c := Compressed(JSON[testRecord](), comp)
		d, err := c.Marshal(recs)
		assert.NoError(t, err, comp.String())
		if comp != CompressionNone {
			assert.True(t, len(d) < len(plain), "%s: %d >= %d", comp, len(d), len(plain))
		}
		// data written with any compression is readable by any other
		for _, comp2 := range []Compression{CompressionNone, CompressionZstd, CompressionBrotli} {
			got, err := Compressed(JSON[testRecord](), comp2).Unmarshal(d)
			assert.NoError(t, err)
			assert.Equal(t, recs, got)
		}
	}
}

func TestCompressedInStore(t *testing.T) {
	b := newMapBackend()
	s, err := New("nfts", b, Compressed(JSON[testRecord](), CompressionZstd), nil)
	assert.NoError(t, err)
	testRecords := genRandomRecords(40)
	for _, rec := range testRecords {
		assert.NoError(t, s.Append(ctx, rec))
	}
	assert.Equal(t, tagZstd, b.m["nfts"][0])
	recs, err := s.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, testRecords, recs)
}

func TestCompressedBadData(t *testing.T) {
	c := Compressed(JSON[testRecord](), CompressionZstd)
	tests := [][]byte{
		{},
		[]byte("x[]"),
		append([]byte{tagZstd}, []byte("not zstd")...),
		append([]byte{tagNone}, []byte("not json")...),
	}
	for _, d := range tests {
		_, err := c.Unmarshal(d)
		assert.Error(t, err, "%q", d)
	}

	b := newMapBackend()
	b.m["products"] = []byte("x[]")
	s, err := New("products", b, c, nil)
	assert.NoError(t, err)
	_, err = s.List(ctx)
	assert.True(t, errors.Is(err, ErrDecodeFailure))
}

func TestCompressedLimit(t *testing.T) {
	// compresses very well
	recs := make([]testRecord, 2000)
	for _, comp := range []Compression{CompressionZstd, CompressionBrotli} {
		d, err := Compressed(JSON[testRecord](), comp).Marshal(recs)
		assert.NoError(t, err)
		assert.True(t, len(d) < 1024, "%s: %d", comp, len(d))

		_, err = CompressedWithLimit(JSON[testRecord](), comp, 1024).Unmarshal(d)
		assert.Error(t, err, comp.String())
		got, err := CompressedWithLimit(JSON[testRecord](), comp, 1<<20).Unmarshal(d)
		assert.NoError(t, err, comp.String())
		assert.Equal(t, recs, got)

		b := newMapBackend()
		b.m["nfts"] = d
		s, err := New("nfts", b, CompressedWithLimit(JSON[testRecord](), comp, 1024), nil)
		assert.NoError(t, err)
		_, err = s.List(ctx)
		assert.True(t, errors.Is(err, ErrDecodeFailure))
	}
}

func TestParseCompression(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionZstd, CompressionBrotli} {
		got, err := ParseCompression(comp.String())
		assert.NoError(t, err)
		assert.Equal(t, comp, got)
	}
	got, err := ParseCompression("")
	assert.NoError(t, err)
	assert.Equal(t, CompressionNone, got)
	_, err = ParseCompression("lzma")
	assert.Error(t, err)
}

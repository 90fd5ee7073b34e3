package fraud

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/richxcame/civic-reports/internal/fraud/fraudtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tiffWithEntries builds a little-endian TIFF block with one IFD at offset 8
// holding the given 12-byte entries, followed by extra bytes.
func tiffWithEntries(next uint32, entries [][12]byte, extra int) []byte {
	le := binary.LittleEndian
	size := 8 + 2 + len(entries)*12 + 4 + extra
	b := make([]byte, size)
	copy(b, "II")
	le.PutUint16(b[2:], 42)
	le.PutUint32(b[4:], 8)
	le.PutUint16(b[8:], uint16(len(entries)))
	for i, e := range entries {
		copy(b[10+i*12:], e[:])
	}
	le.PutUint32(b[10+len(entries)*12:], next)
	return b
}

func entry(id, typ uint16, count, value uint32) [12]byte {
	var e [12]byte
	le := binary.LittleEndian
	le.PutUint16(e[0:], id)
	le.PutUint16(e[2:], typ)
	le.PutUint32(e[4:], count)
	le.PutUint32(e[8:], value)
	return e
}

// cyclicTIFF has IFD0 -> IFD1 -> IFD0.
func cyclicTIFF() []byte {
	le := binary.LittleEndian
	b := make([]byte, 44)
	copy(b, "II")
	le.PutUint16(b[2:], 42)
	le.PutUint32(b[4:], 8)

	le.PutUint16(b[8:], 1)
	e := entry(0x0100, 3, 1, 1)
	copy(b[10:], e[:])
	le.PutUint32(b[22:], 26)

	le.PutUint16(b[26:], 1)
	copy(b[28:], e[:])
	le.PutUint32(b[40:], 8)
	return b
}

// ========================================
// GPS EXTRACTION
// ========================================

func TestEvidenceFromImage_ReadsGPS(t *testing.T) {
	p := EvidenceFromImage(fraudtest.GPSJPEG(28.8, 77.1))

	require.NotNil(t, p)
	assert.InDelta(t, 28.8, p.Latitude, 1e-6)
	assert.InDelta(t, 77.1, p.Longitude, 1e-6)
}

func TestEvidenceFromImage_SouthWest(t *testing.T) {
	p := EvidenceFromImage(fraudtest.GPSJPEG(-33.8568, -70.6483))

	require.NotNil(t, p)
	assert.InDelta(t, -33.8568, p.Latitude, 1e-5)
	assert.InDelta(t, -70.6483, p.Longitude, 1e-5)
}

func TestEvidenceFromImage_SkipsLeadingSegments(t *testing.T) {
	img := fraudtest.GPSJPEG(28.8, 77.1)
	app0 := []byte{0xFF, 0xE0, 0x00, 0x06, 'J', 'F', 'I', 'F'}
	withApp0 := append(append(append([]byte{}, img[:2]...), app0...), img[2:]...)

	p := EvidenceFromImage(withApp0)
	require.NotNil(t, p)
	assert.InDelta(t, 28.8, p.Latitude, 1e-6)
}

func TestEvidenceFromImage_NoExif(t *testing.T) {
	assert.Nil(t, EvidenceFromImage(nil))
	assert.Nil(t, EvidenceFromImage([]byte("not an image")))
	assert.Nil(t, EvidenceFromImage([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}))
	// SOI + APP0 only
	assert.Nil(t, EvidenceFromImage([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}))
}

// ========================================
// CORRUPT METADATA
// ========================================

func TestEvidenceFromImage_CorruptInputs(t *testing.T) {
	tests := []struct {
		name  string
		image []byte
	}{
		// 8 * count wraps to 24 in 32 bits while the count itself asks for gigabytes
		{"wrapping value count", fraudtest.GPSJPEGWithLatitudeCount(28.8, 77.1, 0x20000003)},
		{"value count past segment", fraudtest.GPSJPEGWithLatitudeCount(28.8, 77.1, 1000)},
		{"corrupt count marker", fraudtest.GPSJPEGWithLatitudeCount(28.8, 77.1, math.MaxUint32)},
		{"cyclic ifd chain", fraudtest.JPEGWithEXIF(cyclicTIFF())},
		{"app1 without soi", []byte("\xff\xe1\x00aExif\x00\x00II*\x00\b\x00\x00\x00\x01\x00%\x88\x04\x00")},
		{"truncated app1", fraudtest.GPSJPEG(28.8, 77.1)[:40]},
		{"scan before exif", append([]byte{0xFF, 0xD8, 0xFF, 0xDA, 0x00, 0x02}, fraudtest.GPSJPEG(28.8, 77.1)[2:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, EvidenceFromImage(tt.image))
		})
	}
}

func TestCheckTIFF(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		valid bool
	}{
		{"single entry", tiffWithEntries(0, [][12]byte{entry(0x010F, 2, 100, 26)}, 100), true},
		{"inline value", tiffWithEntries(0, [][12]byte{entry(0x0112, 3, 1, 1)}, 0), true},
		{"value past end", tiffWithEntries(0, [][12]byte{entry(0x010F, 2, 100, 26)}, 50), false},
		{"unknown type", tiffWithEntries(0, [][12]byte{entry(0x010F, 99, 1, 0)}, 0), false},
		{"zero count", tiffWithEntries(0, [][12]byte{entry(0x010F, 2, 0, 0)}, 0), false},
		{"next ifd past end", tiffWithEntries(4096, [][12]byte{entry(0x0112, 3, 1, 1)}, 0), false},
		{"cycle", cyclicTIFF(), false},
		{"bad byte order", []byte("XX*\x00\x08\x00\x00\x00"), false},
		{"bad magic", []byte("II+\x00\x08\x00\x00\x00"), false},
		{"too short", []byte("II*\x00"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTIFF(tt.data)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCheckTIFF_OverlappingValuesAreBounded(t *testing.T) {
	entries := make([][12]byte, 20)
	for i := range entries {
		entries[i] = entry(0x010F, 1, 100, 254)
	}

	assert.Error(t, checkTIFF(tiffWithEntries(0, entries, 100)))
}

func TestCheckTIFF_FollowsSubIFDPointers(t *testing.T) {
	// GPS pointer to an IFD whose only entry claims far more data than exists
	le := binary.LittleEndian
	data := tiffWithEntries(0, [][12]byte{entry(0x8825, 4, 1, 26)}, 18)
	le.PutUint16(data[26:], 1)
	bad := entry(2, 5, 0x20000003, 0)
	copy(data[28:], bad[:])

	assert.Error(t, checkTIFF(data))
}

func TestValidCoordinate(t *testing.T) {
	assert.True(t, validCoordinate(28.7, 77.1))
	assert.False(t, validCoordinate(91, 0))
	assert.False(t, validCoordinate(0, -181))
	assert.False(t, validCoordinate(math.NaN(), 0))
}

func FuzzEvidenceFromImage(f *testing.F) {
	f.Add(fraudtest.GPSJPEG(28.8, 77.1))
	f.Add(fraudtest.GPSJPEGWithLatitudeCount(28.8, 77.1, 0x20000003))
	f.Add(fraudtest.JPEGWithEXIF(cyclicTIFF()))
	f.Add([]byte("\xff\xe1\x00aExif\x00\x00II*\x00\b\x00\x00\x00\x01\x00%\x88\x04\x00"))

	f.Fuzz(func(t *testing.T, image []byte) {
		p := EvidenceFromImage(image)
		if p != nil && !validCoordinate(p.Latitude, p.Longitude) {
			t.Fatalf("out of range position %+v", *p)
		}
	})
}

// Package fraudtest builds JPEG fixtures that carry EXIF GPS tags.
package fraudtest

import (
	"encoding/binary"
	"math"
)

// GPSJPEG returns a minimal JPEG whose EXIF GPS IFD places it at lat, lon.
func GPSJPEG(lat, lon float64) []byte {
	return GPSJPEGWithLatitudeCount(lat, lon, 3)
}

// GPSJPEGWithLatitudeCount is GPSJPEG with the declared value count of the
// GPSLatitude tag replaced. The stored data stays three rationals long.
func GPSJPEGWithLatitudeCount(lat, lon float64, count uint32) []byte {
	le := binary.LittleEndian
	tiff := make([]byte, 128)

	copy(tiff, "II")
	le.PutUint16(tiff[2:], 42)
	le.PutUint32(tiff[4:], 8)

	// IFD0: a single GPS IFD pointer
	le.PutUint16(tiff[8:], 1)
	putEntry(tiff[10:], 0x8825, 4, 1, 26)
	le.PutUint32(tiff[22:], 0)

	latRef, lonRef := "N", "E"
	if lat < 0 {
		latRef = "S"
	}
	if lon < 0 {
		lonRef = "W"
	}

	le.PutUint16(tiff[26:], 4)
	putEntry(tiff[28:], 1, 2, 2, 0)
	copy(tiff[36:], latRef)
	putEntry(tiff[40:], 2, 5, count, 80)
	putEntry(tiff[52:], 3, 2, 2, 0)
	copy(tiff[60:], lonRef)
	putEntry(tiff[64:], 4, 5, 3, 104)
	le.PutUint32(tiff[76:], 0)

	putDegrees(tiff[80:], math.Abs(lat))
	putDegrees(tiff[104:], math.Abs(lon))

	return JPEGWithEXIF(tiff)
}

// JPEGWithEXIF wraps a TIFF block in an Exif APP1 segment between SOI and EOI.
func JPEGWithEXIF(tiff []byte) []byte {
	segment := append([]byte("Exif\x00\x00"), tiff...)

	out := []byte{0xFF, 0xD8, 0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(out[4:], uint16(len(segment)+2))
	out = append(out, segment...)
	return append(out, 0xFF, 0xD9)
}

func putEntry(b []byte, id, typ uint16, count, value uint32) {
	le := binary.LittleEndian
	le.PutUint16(b, id)
	le.PutUint16(b[2:], typ)
	le.PutUint32(b[4:], count)
	le.PutUint32(b[8:], value)
}

// putDegrees writes degrees, minutes and seconds as three rationals.
func putDegrees(b []byte, v float64) {
	deg := math.Floor(v)
	minutes := math.Floor((v - deg) * 60)
	seconds := ((v-deg)*60 - minutes) * 60

	le := binary.LittleEndian
	le.PutUint32(b[0:], uint32(deg))
	le.PutUint32(b[4:], 1)
	le.PutUint32(b[8:], uint32(minutes))
	le.PutUint32(b[12:], 1)
	le.PutUint32(b[16:], uint32(math.Round(seconds*1000)))
	le.PutUint32(b[20:], 1000)
}

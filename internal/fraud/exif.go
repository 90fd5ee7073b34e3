package fraud

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	maxExifBytes  = 64 << 10
	maxIFDs       = 16
	maxIFDEntries = 1024
	ifdEntrySize  = 12
	exifHeader    = "Exif\x00\x00"
	tagExifIFD    = 0x8769
	tagGPSIFD     = 0x8825
	tagInteropIFD = 0xA005
	countCorrupt  = math.MaxUint32
)

// tiffTypeSize is the byte size of one value of each TIFF field type.
var tiffTypeSize = map[uint16]uint64{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

var errBadTIFF = errors.New("fraud: malformed exif data")

// EvidenceFromImage extracts the GPS position embedded in a JPEG's EXIF
// block. It returns nil when the image has no usable position, which callers
// treat as "no evidence".
//
// The EXIF block is walked and bounds-checked before it is decoded: the
// decoder allocates by the declared value counts, so unchecked input can
// exhaust memory.
func EvidenceFromImage(image []byte) (p *Point) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
		}
	}()

	segment := exifSegment(image)
	if segment == nil {
		return nil
	}
	if err := checkTIFF(segment); err != nil {
		return nil
	}

	x, err := exif.Decode(bytes.NewReader(segment))
	if err != nil {
		return nil
	}

	lat, lon, err := x.LatLong()
	if err != nil || !validCoordinate(lat, lon) {
		return nil
	}

	return &Point{Latitude: lat, Longitude: lon}
}

// exifSegment returns the TIFF payload of the first Exif APP1 segment in a
// JPEG, or nil. Only the header segments before the scan are examined.
func exifSegment(image []byte) []byte {
	if len(image) < 4 || image[0] != 0xFF || image[1] != 0xD8 {
		return nil
	}

	i := 2
	for i+4 <= len(image) {
		if image[i] != 0xFF {
			return nil
		}
		marker := image[i+1]
		switch {
		case marker == 0xFF:
			i++
			continue
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD8):
			i += 2
			continue
		case marker == 0xDA || marker == 0xD9:
			return nil
		}

		length := int(binary.BigEndian.Uint16(image[i+2:]))
		end := i + 2 + length
		if length < 2 || end > len(image) {
			return nil
		}
		payload := image[i+4 : end]
		if marker == 0xE1 && bytes.HasPrefix(payload, []byte(exifHeader)) {
			tiff := payload[len(exifHeader):]
			if len(tiff) > maxExifBytes {
				return nil
			}
			return tiff
		}
		i = end
	}
	return nil
}

// tiffWalker validates every IFD the decoder will visit: the IFD0 chain and
// the Exif, GPS and interoperability sub-IFDs.
type tiffWalker struct {
	data       []byte
	order      binary.ByteOrder
	visited    map[uint32]bool
	dirs       int
	entries    int
	valueBytes uint64
}

func checkTIFF(data []byte) error {
	if len(data) < 8 {
		return errBadTIFF
	}

	w := &tiffWalker{data: data, visited: make(map[uint32]bool)}
	switch string(data[:2]) {
	case "II":
		w.order = binary.LittleEndian
	case "MM":
		w.order = binary.BigEndian
	default:
		return errBadTIFF
	}
	if w.order.Uint16(data[2:]) != 42 {
		return errBadTIFF
	}

	var pending []uint32
	for off := w.order.Uint32(data[4:]); off != 0; {
		if w.visited[off] {
			return errBadTIFF
		}
		next, pointers, err := w.dir(off)
		if err != nil {
			return err
		}
		pending = append(pending, pointers...)
		off = next
	}

	for len(pending) > 0 {
		off := pending[0]
		pending = pending[1:]
		if w.visited[off] {
			continue
		}
		_, pointers, err := w.dir(off)
		if err != nil {
			return err
		}
		pending = append(pending, pointers...)
	}
	return nil
}

// dir checks the IFD at off and returns the next IFD offset and any sub-IFD
// pointers it holds.
func (w *tiffWalker) dir(off uint32) (uint32, []uint32, error) {
	w.visited[off] = true
	w.dirs++
	if w.dirs > maxIFDs {
		return 0, nil, errBadTIFF
	}

	size := uint64(len(w.data))
	if uint64(off)+2 > size {
		return 0, nil, errBadTIFF
	}
	n := int(int16(w.order.Uint16(w.data[off:])))
	if n < 0 {
		n = 0
	}
	w.entries += n
	if w.entries > maxIFDEntries {
		return 0, nil, errBadTIFF
	}
	end := uint64(off) + 2 + uint64(n)*ifdEntrySize
	if end+4 > size {
		return 0, nil, errBadTIFF
	}

	var pointers []uint32
	for i := 0; i < n; i++ {
		e := off + 2 + uint32(i)*ifdEntrySize
		id := w.order.Uint16(w.data[e:])
		typ := w.order.Uint16(w.data[e+2:])
		count := w.order.Uint32(w.data[e+4:])

		typeSize, ok := tiffTypeSize[typ]
		if !ok || count == 0 || count == countCorrupt {
			return 0, nil, errBadTIFF
		}
		valLen := typeSize * uint64(count)
		valAt := uint64(e) + 8
		if valLen > 4 {
			valAt = uint64(w.order.Uint32(w.data[e+8:]))
			if valAt+valLen > size {
				return 0, nil, errBadTIFF
			}
			// overlapping values would let a small block claim large totals
			w.valueBytes += valLen
			if w.valueBytes > size {
				return 0, nil, errBadTIFF
			}
		}

		if id == tagExifIFD || id == tagGPSIFD || id == tagInteropIFD {
			if ptr, ok := w.pointer(typ, valAt); ok {
				pointers = append(pointers, ptr)
			}
		}
	}

	return w.order.Uint32(w.data[end:]), pointers, nil
}

// pointer reads the first value of an offset tag. Values the decoder cannot
// seek to are skipped since it fails on them without allocating.
func (w *tiffWalker) pointer(typ uint16, at uint64) (uint32, bool) {
	var v int64
	switch typ {
	case 1, 7:
		v = int64(w.data[at])
	case 6:
		v = int64(int8(w.data[at]))
	case 3:
		v = int64(w.order.Uint16(w.data[at:]))
	case 8:
		v = int64(int16(w.order.Uint16(w.data[at:])))
	case 4:
		v = int64(w.order.Uint32(w.data[at:]))
	case 9:
		v = int64(int32(w.order.Uint32(w.data[at:])))
	default:
		return 0, false
	}
	if v < 0 || v >= int64(len(w.data)) {
		return 0, false
	}
	return uint32(v), true
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = iota
	// PCDBinary binary format for pcd.
	PCDBinary
	// PCDCompressed binary compressed format for pcd, which is not supported.
	PCDCompressed
)

func (t PCDType) String() string {
	switch t {
	case PCDAscii:
		return "ascii"
	case PCDBinary:
		return "binary"
	case PCDCompressed:
		return "binary_compressed"
	default:
		return fmt.Sprintf("PCDType(%d)", int(t))
	}
}

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

type pcdHeader struct {
	fields []string
	size   []int
	types  []string
	count  []int
	width  uint64
	height uint64
	points uint64
	data   PCDType

	// column of x, y, z and rgb in fields, rgb is -1 when absent
	x, y, z, rgb int
}

// ToPCD writes the cloud in PCD v0.7. Coordinates are written as 8 byte floats
// so that survey scale coordinates keep their precision.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	if outputType != PCDAscii && outputType != PCDBinary {
		return errors.Errorf("writing %v pcd is not supported", outputType)
	}
	hasColor := cloud.MetaData().HasColor

	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "VERSION .7\n")
	if hasColor {
		fmt.Fprintf(w, "FIELDS x y z rgb\nSIZE 8 8 8 4\nTYPE F F F U\nCOUNT 1 1 1 1\n")
	} else {
		fmt.Fprintf(w, "FIELDS x y z\nSIZE 8 8 8\nTYPE F F F\nCOUNT 1 1 1\n")
	}
	fmt.Fprintf(w, "WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\n", cloud.Size(), cloud.Size())
	fmt.Fprintf(w, "DATA %v\n", outputType)

	var err error
	buf := make([]byte, 28)
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint64(buf, math.Float64bits(p.X))
			binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(p.Y))
			binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(p.Z))
			n := 24
			if hasColor {
				binary.LittleEndian.PutUint32(buf[24:], colorToPCDInt(d))
				n = 28
			}
			_, err = w.Write(buf[:n])
		default:
			line := strconv.FormatFloat(p.X, 'f', -1, 64) + " " +
				strconv.FormatFloat(p.Y, 'f', -1, 64) + " " +
				strconv.FormatFloat(p.Z, 'f', -1, 64)
			if hasColor {
				line += " " + strconv.FormatUint(uint64(colorToPCDInt(d)), 10)
			}
			_, err = w.WriteString(line + "\n")
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

// ReadPCD reads an ascii or binary PCD v0.7 stream with at least the x, y and z fields.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	header := pcdHeader{x: -1, y: -1, z: -1, rgb: -1}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "reading header line %d", headerLineCount)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	if header.x < 0 || header.y < 0 || header.z < 0 {
		return nil, errors.Errorf("pcd fields %v lack x, y or z", header.fields)
	}

	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	default:
		return nil, errors.Errorf("unsupported pcd data type %v", header.data)
	}
}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Fields(value)
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	parseInts := func() ([]int, error) {
		if len(tokens) != len(header.fields) {
			return nil, errors.Errorf("unexpected number of fields in %s line", name)
		}
		ints := make([]int, len(tokens))
		for i, token := range tokens {
			v, err := strconv.Atoi(token)
			if err != nil || v <= 0 {
				return nil, errors.Errorf("invalid %s field %s", name, token)
			}
			ints[i] = v
		}
		return ints, nil
	}

	var err error
	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		header.fields = tokens
		for i, f := range tokens {
			switch f {
			case "x":
				header.x = i
			case "y":
				header.y = i
			case "z":
				header.z = i
			case "rgb", "rgba":
				header.rgb = i
			}
		}
	case "SIZE":
		if header.size, err = parseInts(); err != nil {
			return err
		}
		for i, size := range header.size {
			if size != 1 && size != 2 && size != 4 && size != 8 {
				return errors.Errorf("invalid SIZE %d for field %s", size, header.fields[i])
			}
		}
	case "TYPE":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in TYPE line")
		}
		for _, token := range tokens {
			if token != "F" && token != "I" && token != "U" {
				return errors.Errorf("invalid TYPE field %s", token)
			}
		}
		header.types = tokens
	case "COUNT":
		if header.count, err = parseInts(); err != nil {
			return err
		}
		for i, c := range header.count {
			if c != 1 && (i == header.x || i == header.y || i == header.z || i == header.rgb) {
				return errors.Errorf("COUNT of field %s must be 1", header.fields[i])
			}
		}
	case "WIDTH":
		if header.width, err = strconv.ParseUint(value, 10, 64); err != nil {
			return errors.Wrapf(err, "invalid WIDTH field %s", value)
		}
	case "HEIGHT":
		if header.height, err = strconv.ParseUint(value, 10, 64); err != nil {
			return errors.Wrapf(err, "invalid HEIGHT field %s", value)
		}
	case "VIEWPOINT":
		// the cloud is stored in the survey frame, the sensor pose is not kept
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
	case "POINTS":
		if header.points, err = strconv.ParseUint(value, 10, 64); err != nil {
			return errors.Wrapf(err, "invalid POINTS field %s", value)
		}
		if header.points != header.width*header.height {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", header.points, header.width*header.height)
		}
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		case "binary_compressed":
			header.data = PCDCompressed
		default:
			return errors.Errorf("unknown pcd data type %s", value)
		}
	}
	return nil
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	// number of values on a line
	width := 0
	for _, c := range header.count {
		width += c
	}
	// position of each field's first value on a line
	offsets := make([]int, len(header.count))
	for i := 1; i < len(offsets); i++ {
		offsets[i] = offsets[i-1] + header.count[i-1]
	}

	cloud := NewWithPrealloc(int(header.points))
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != width {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		values := make([]float64, len(header.fields))
		for j := range header.fields {
			token := tokens[offsets[j]]
			if values[j], err = strconv.ParseFloat(token, 64); err != nil {
				return nil, errors.Errorf("invalid point %d field %s: %s", i, token, err)
			}
			if j == header.rgb && header.types[j] == "F" {
				values[j] = float64(math.Float32bits(float32(values[j])))
			}
		}
		if err := setPCDPoint(cloud, values, header); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	recordSize := 0
	for j := range header.fields {
		recordSize += header.size[j] * header.count[j]
	}
	record := make([]byte, recordSize)

	cloud := NewWithPrealloc(int(header.points))
	for i := 0; i < int(header.points); i++ {
		if _, err := io.ReadFull(in, record); err != nil {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		values := make([]float64, len(header.fields))
		offset := 0
		for j := range header.fields {
			b := record[offset : offset+header.size[j]]
			if j == header.rgb && len(b) == 4 {
				// packed color, whatever the declared type
				values[j] = float64(binary.LittleEndian.Uint32(b))
			} else {
				values[j] = decodePCDValue(b, header.types[j])
			}
			offset += header.size[j] * header.count[j]
		}
		if err := setPCDPoint(cloud, values, header); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

func decodePCDValue(b []byte, typ string) float64 {
	switch typ {
	case "F":
		if len(b) == 8 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case "I":
		switch len(b) {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(binary.LittleEndian.Uint16(b)))
		case 4:
			return float64(int32(binary.LittleEndian.Uint32(b)))
		default:
			return float64(int64(binary.LittleEndian.Uint64(b)))
		}
	default:
		switch len(b) {
		case 1:
			return float64(b[0])
		case 2:
			return float64(binary.LittleEndian.Uint16(b))
		case 4:
			return float64(binary.LittleEndian.Uint32(b))
		default:
			return float64(binary.LittleEndian.Uint64(b))
		}
	}
}

func setPCDPoint(cloud PointCloud, values []float64, header pcdHeader) error {
	pos := r3.Vector{X: values[header.x], Y: values[header.y], Z: values[header.z]}
	var data Data
	if header.rgb >= 0 {
		data = NewColoredData(pcdIntToColor(uint32(values[header.rgb])))
	}
	return cloud.Set(pos, data)
}

func colorToPCDInt(d Data) uint32 {
	if d == nil || !d.HasColor() {
		return 0xFFFFFF
	}
	r, g, b := d.RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func pcdIntToColor(c uint32) color.NRGBA {
	return color.NRGBA{
		R: uint8(0xFF & (c >> 16)),
		G: uint8(0xFF & (c >> 8)),
		B: uint8(0xFF & c),
		A: 255,
	}
}

package pointcloud

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// DefaultSeparator separates the columns of a coordinate list.
const DefaultSeparator = ";"

// CSVOptions describes the layout of a delimited coordinate list.
type CSVOptions struct {
	// Separator is the column separator, DefaultSeparator when empty. Blank or
	// tab separators accept runs of white space.
	Separator string
	// WithID is set when the first column holds the point id. Integer ids are
	// kept as the point value.
	WithID bool
}

func (opts CSVOptions) separator() (rune, error) {
	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	if sep == `\t` {
		sep = "\t"
	}
	runes := []rune(sep)
	if len(runes) != 1 || runes[0] == '"' || runes[0] == '\n' || runes[0] == '\r' {
		return 0, errors.Errorf("invalid separator %q", opts.Separator)
	}
	return runes[0], nil
}

// Validate checks that the separator is usable.
func (opts CSVOptions) Validate() error {
	_, err := opts.separator()
	return err
}

// ReadCSV reads x, y, z rows from a delimited text. Blank lines and lines
// starting with # are skipped, columns after z are ignored.
func ReadCSV(in io.Reader, opts CSVOptions) (PointCloud, error) {
	sep, err := opts.separator()
	if err != nil {
		return nil, err
	}
	whitespace := sep == ' ' || sep == '\t'

	r := csv.NewReader(in)
	r.Comma = sep
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	first := 0
	if opts.WithID {
		first = 1
	}

	cloud := New()
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading coordinate list")
		}
		line, _ := r.FieldPos(0)

		fields := lo.Map(record, func(f string, _ int) string {
			return strings.TrimSpace(f)
		})
		if whitespace {
			fields = lo.Compact(fields)
		}
		if len(lo.Compact(fields)) == 0 {
			continue
		}
		if len(fields) < first+3 {
			return nil, errors.Errorf("line %d: expected %d columns, got %d", line, first+3, len(fields))
		}

		var coords [3]float64
		for i := range coords {
			coords[i], err = strconv.ParseFloat(fields[first+i], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid coordinate %q", line, fields[first+i])
			}
		}

		var data Data
		if opts.WithID {
			if id, err := strconv.Atoi(fields[0]); err == nil {
				data = NewValueData(id)
			}
		}
		if err := cloud.Set(r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]}, data); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
	}
	return cloud, nil
}

// WriteCSV writes the cloud as x, y, z rows, preceded by the point value when
// the cloud has values.
func WriteCSV(cloud PointCloud, out io.Writer, opts CSVOptions) error {
	sep, err := opts.separator()
	if err != nil {
		return err
	}
	w := csv.NewWriter(out)
	w.Comma = sep

	withID := opts.WithID && cloud.MetaData().HasValue
	format := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		record := make([]string, 0, 4)
		if withID {
			id := ""
			if d != nil && d.HasValue() {
				id = strconv.Itoa(d.Value())
			}
			record = append(record, id)
		}
		record = append(record, format(p.X), format(p.Y), format(p.Z))
		err = w.Write(record)
		return err == nil
	})
	if err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

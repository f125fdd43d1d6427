package model

// BoundaryKind distinguishes horizontal from vertical separators.
type BoundaryKind string

const (
	BoundaryRow    BoundaryKind = "row-separator"
	BoundaryColumn BoundaryKind = "column-separator"
)

// Boundary is a maximal run of blank rows or columns lying strictly between
// non-blank content. Position is the index of the first blank line in the run.
type Boundary struct {
	Kind       BoundaryKind `json:"kind"`
	Position   int          `json:"position"`
	RunLength  int          `json:"run_length"`
	Confidence float64      `json:"confidence"`
}

// End returns the index just past the blank run.
func (b Boundary) End() int {
	return b.Position + b.RunLength
}

// Span is a half-open [Start, End) index range.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices covered.
func (s Span) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// TableRegion is a rectangular sub-grid believed to hold one homogeneous table.
type TableRegion struct {
	Sheet string `json:"sheet"`
	// Name is the A1-style range, e.g. "Sheet1!A1:D10".
	Name string `json:"name"`
	Rows Span   `json:"rows"`
	Cols Span   `json:"cols"`

	// HeaderRow is the absolute sheet row index of the header.
	HeaderRow   int  `json:"header_row"`
	HeaderFound bool `json:"header_found"`

	Headers []string   `json:"headers"`
	Data    [][]string `json:"-"`
	// DataStart is the absolute sheet row index of Data[0].
	DataStart  int        `json:"data_start"`
	SampleRows [][]string `json:"sample_rows"`
	Confidence float64    `json:"confidence"`
}

// SourceRow returns the 1-based spreadsheet row number of Data[i].
func (r TableRegion) SourceRow(i int) int {
	return r.DataStart + i + 1
}

// CharSize is the total character count of header and data cells.
func (r TableRegion) CharSize() int {
	n := 0
	for _, h := range r.Headers {
		n += len(h)
	}
	for _, row := range r.Data {
		for _, c := range row {
			n += len(c)
		}
	}
	return n
}

// WithRows returns a copy of the region restricted to Data[from:to].
func (r TableRegion) WithRows(from, to int) TableRegion {
	if from < 0 {
		from = 0
	}
	if to > len(r.Data) {
		to = len(r.Data)
	}
	out := r
	out.Data = r.Data[from:to]
	out.DataStart = r.DataStart + from
	return out
}

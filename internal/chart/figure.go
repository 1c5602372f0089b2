package chart

// Margin is the plot margin in pixels.
type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	B int `json:"b"`
	T int `json:"t"`
}

// Legend positions the trace legend.
type Legend struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	XAnchor string  `json:"xanchor"`
}

// Axis is the subset of plotly axis settings the figure uses.
type Axis struct {
	Domain [2]float64 `json:"domain"`
	Anchor string     `json:"anchor"`
}

// Layout is the plotly layout for a two-row, one-column subplot grid.
type Layout struct {
	Margin Margin `json:"margin"`
	Legend Legend `json:"legend"`
	XAxis  Axis   `json:"xaxis"`
	YAxis  Axis   `json:"yaxis"`
	XAxis2 Axis   `json:"xaxis2"`
	YAxis2 Axis   `json:"yaxis2"`
}

// Figure is a plotly figure: {"data": [...], "layout": {...}}.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// VerticalSpacing is the gap between the two subplot rows as a fraction of
// the plot height.
const VerticalSpacing = 0.2

// NewFigure stacks top above bottom. Rows split the height left after
// VerticalSpacing evenly.
func NewFigure(top, bottom Trace) Figure {
	top.XAxis, top.YAxis = "x", "y"
	bottom.XAxis, bottom.YAxis = "x2", "y2"

	row := (1 - VerticalSpacing) / 2
	return Figure{
		Data: []Trace{top, bottom},
		Layout: Layout{
			Margin: Margin{L: 30, R: 10, B: 30, T: 10},
			Legend: Legend{X: 0, Y: 1, XAnchor: "left"},
			XAxis:  Axis{Domain: [2]float64{0, 1}, Anchor: "y"},
			YAxis:  Axis{Domain: [2]float64{1 - row, 1}, Anchor: "x"},
			XAxis2: Axis{Domain: [2]float64{0, 1}, Anchor: "y2"},
			YAxis2: Axis{Domain: [2]float64{0, row}, Anchor: "x2"},
		},
	}
}

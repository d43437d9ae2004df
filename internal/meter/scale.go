package meter

// ScaleMark is a labelled graduation on the meter face.
type ScaleMark struct {
	VU    float64
	Label string
}

var scaleMarks = []ScaleMark{
	{VU: -20, Label: "-20"},
	{VU: -10, Label: "-10"},
	{VU: -7, Label: "-7"},
	{VU: -5, Label: "-5"},
	{VU: -3, Label: "-3"},
	{VU: -1, Label: "-1"},
	{VU: 0, Label: "0"},
	{VU: 1, Label: "+1"},
	{VU: 2, Label: "+2"},
	{VU: 3, Label: "+3"},
}

// ScaleMarks returns the classic VU scale graduations, lowest first.
func ScaleMarks() []ScaleMark {
	out := make([]ScaleMark, len(scaleMarks))
	copy(out, scaleMarks)
	return out
}

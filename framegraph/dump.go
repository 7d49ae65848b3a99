package framegraph

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// WriteTable prints the plan as one row per barrier.
func (p *Plan) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Node", "Resource", "Layout", "Src", "Dst"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	row := func(node string, b Barrier) {
		layout := "-"
		if b.Kind == Image {
			layout = fmt.Sprintf("%v -> %v", b.OldLayout, b.NewLayout)
		}
		table.Append([]string{
			node,
			b.Resource,
			layout,
			fmt.Sprintf("%v %v", b.SrcStage, b.SrcAccess),
			fmt.Sprintf("%v %v", b.DstStage, b.DstAccess),
		})
	}
	for _, s := range p.Steps {
		for _, b := range s.Barriers {
			row(s.Node, b)
		}
	}
	for _, b := range p.Epilogue {
		row("(end)", b)
	}
	table.SetFooter([]string{"", "", "", "parity", fmt.Sprint(p.Parity)})
	table.Render()
}

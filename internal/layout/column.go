package layout

import "sort"

// orderColumns fixes reading order on multi-column pages. Lines are
// clustered into vertical columns by x-start proximity; columns read
// left-to-right, and within a column lines read top-to-bottom. A naive
// y-only ordering would interleave unrelated columns line by line.
func orderColumns(lines []Line) []Line {
	if len(lines) < 2 {
		return lines
	}

	var widthSum float64
	for _, ln := range lines {
		widthSum += ln.Box.X1 - ln.Box.X0
	}
	avgWidth := widthSum / float64(len(lines))

	gap := ColumnGapWidthRatio * avgWidth
	if gap < ColumnGapMin {
		gap = ColumnGapMin
	}

	byStart := make([]Line, len(lines))
	copy(byStart, lines)
	sort.SliceStable(byStart, func(i, j int) bool {
		return byStart[i].Box.X0 < byStart[j].Box.X0
	})

	var columns [][]Line
	for _, ln := range byStart {
		if len(columns) > 0 {
			col := columns[len(columns)-1]
			if ln.Box.X0-col[0].Box.X0 <= gap {
				columns[len(columns)-1] = append(col, ln)
				continue
			}
		}
		columns = append(columns, []Line{ln})
	}

	out := make([]Line, 0, len(lines))
	for _, col := range columns {
		sort.SliceStable(col, func(i, j int) bool {
			return col[i].Box.Y1 > col[j].Box.Y1
		})
		out = append(out, col...)
	}
	return out
}

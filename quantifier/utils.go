/*
 * Utility functions for quantifier package
 */

package quantifier

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// PrintLevelTable writes the level bands of q as a table
func PrintLevelTable(w io.Writer, q *Quantifier) {
	data := [][]string{}

	for _, level := range q.QuantificationLevels {
		newlevel := []string{level.Name, formatFloat(level.Start), formatFloat(level.End), level.GifKeyword}
		data = append(data, newlevel)
	}

	fmt.Fprintf(w, "\nAvailable %s levels (hysteresis %s):\n\n", q.Metric, formatFloat(q.HysteresisMargin))
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Level", "From", "To", "GIF"})
	table.SetBorder(true)
	table.AppendBulk(data)
	table.Render()
	fmt.Fprintln(w)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/diablo/pkg/motion"
	"github.com/gwillem/diablo/pkg/transport/record"
)

type InspectCommand struct {
	Tail int `short:"n" long:"tail" description:"Only show the last N frames"`

	Args struct {
		Recording string `positional-arg-name:"recording" description:"Frame log written by 'run --record'" required:"yes"`
	} `positional-args:"yes"`
}

func (c *InspectCommand) Execute(args []string) error {
	r, err := record.Open(c.Args.Recording)
	if err != nil {
		return err
	}
	defer r.Close()

	var recs []record.Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		fmt.Println(dimStyle.Render("empty recording"))
		return nil
	}

	total := len(recs)
	last := recs[total-1]
	if c.Tail > 0 && c.Tail < len(recs) {
		recs = recs[len(recs)-c.Tail:]
	}

	fmt.Println(renderRecords(recs))

	fmt.Printf("%d frames over %s\n", total, last.Offset)
	if last.Frame.IsNeutral() {
		fmt.Println(successStyle.Render("final frame is neutral"))
	} else {
		fmt.Println(errorStyle.Render("final frame is not neutral: " + last.Frame.String()))
	}
	return nil
}

func flagList(mode motion.Mode) string {
	frame := motion.ControlFrame{Mode: mode}
	var on []string
	for _, f := range motion.AllFlags() {
		if frame.Flag(f) {
			on = append(on, strings.TrimSuffix(string(f), "_mode"))
		}
	}
	return strings.Join(on, ",")
}

func renderRecords(recs []record.Record) string {
	headers := []string{"Seq", "Offset", "Mark"}
	for _, a := range motion.AllAxes() {
		headers = append(headers, string(a))
	}
	headers = append(headers, "Modes")

	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		row := []string{
			fmt.Sprintf("%d", rec.Seq),
			rec.Offset.String(),
			fmt.Sprintf("%t", rec.Frame.ModeMark),
		}
		for _, a := range motion.AllAxes() {
			row = append(row, fmt.Sprintf("%+.2f", rec.Frame.Axis(a)))
		}
		row = append(row, flagList(rec.Frame.Mode))
		rows = append(rows, row)
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableNeutralStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row >= 0 && row < len(recs) && recs[row].Frame.IsNeutral() {
				return tableNeutralStyle
			}
			return tableCellStyle
		})
	return t.Render()
}

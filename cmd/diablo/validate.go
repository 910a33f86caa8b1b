package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/diablo/pkg/motion"
	"github.com/gwillem/diablo/pkg/sequence"
	"github.com/gwillem/diablo/pkg/sequencer"
)

type ValidateCommand struct {
	Clamp  bool          `long:"clamp" description:"Clamp out-of-range axis values instead of rejecting them"`
	Period time.Duration `long:"period" description:"Publish interval used for the frame estimate"`

	Args struct {
		Sequence string `positional-arg-name:"sequence" description:"Sequence file or builtin:<name>" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ValidateCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Clamp {
		cfg.RangePolicy = string(motion.Clamp)
	}
	if c.Period > 0 {
		cfg.Period = c.Period
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	seq, err := sequence.Load(c.Args.Sequence, policy)
	if err != nil {
		issues := flatten(err)
		fmt.Println(errorStyle.Render(fmt.Sprintf("%s: %d issue(s)", c.Args.Sequence, len(issues))))
		for _, issue := range issues {
			fmt.Println("  " + issue.Error())
		}
		return &exitError{code: 1, msg: "sequence is invalid"}
	}

	fmt.Println(renderSteps(seq, cfg.Period))
	return nil
}

// flatten expands joined errors into their leaves.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}

// describe lists the fields a step sets, in message order.
func describe(step motion.StepSpec) string {
	var parts []string
	for _, a := range motion.AllAxes() {
		if v, ok := step.Axis(a); ok {
			parts = append(parts, fmt.Sprintf("%s=%g", a, v))
		}
	}
	for _, f := range motion.AllFlags() {
		if v, ok := step.Flag(f); ok {
			parts = append(parts, fmt.Sprintf("%s=%t", f, v))
		}
	}
	// The merged frame shows the effective mode mark.
	if mark := motion.Apply(motion.Neutral(), step).ModeMark; mark {
		parts = append(parts, "mode_mark=true")
	}
	switch {
	case step.IsHold():
		return dimStyle.Render("hold")
	case len(parts) == 0:
		return "mode_mark=false"
	}
	return strings.Join(parts, " ")
}

func renderSteps(seq motion.Sequence, period time.Duration) string {
	rows := make([][]string, 0, seq.Len())
	var start time.Duration
	frames := 0
	for i, step := range seq.Steps() {
		n := sequencer.FrameCount(step.Duration(), period)
		frames += n
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			step.Name(),
			start.String(),
			step.Duration().String(),
			fmt.Sprintf("%d", n),
			describe(step),
		})
		start += step.Duration()
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableNameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Step", "Start", "Duration", "Frames", "Sets").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 1 {
				return tableNameStyle
			}
			return tableCellStyle
		})

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(seq.Name))
	sb.WriteString("\n")
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	sb.WriteString(successStyle.Render("valid"))
	sb.WriteString(fmt.Sprintf("  %d steps, %s, %d frames + 1 stop frame\n", seq.Len(), seq.Duration(), frames))
	return sb.String()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/diablo/pkg/config"
	"github.com/gwillem/diablo/pkg/motion"
	"github.com/gwillem/diablo/pkg/transport/rig"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Servo IDs probed on each port.
const (
	minServoID = 1
	maxServoID = 10
)

type SetupCommand struct {
	BaudRate int `long:"baud" default:"1000000" description:"Servo bus baud rate"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Diablo Rig Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Step 1: Find the rig
	found, err := c.findRig()
	if err != nil {
		return err
	}

	bus, err := c.openBus(found.port)
	if err != nil {
		return fmt.Errorf("open %s: %w", found.port, err)
	}
	defer bus.Close()

	// Step 2: Assign servos to axes
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Assigning Servos ━━━"))
	assigned, err := assignAxes(bus, found.servos)
	if err != nil {
		return abortable(err)
	}
	if len(assigned) == 0 {
		return errors.New("no servos assigned to an axis")
	}

	// Step 3: Record range of motion
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating ━━━"))
	cal, err := calibrate(assigned)
	if err != nil {
		return err
	}

	// Step 4: Drive direction
	if err := askInverted(cal); err != nil {
		return abortable(err)
	}
	if err := cal.Validate(); err != nil {
		return err
	}

	cfg.Rig.Port = found.port
	cfg.Rig.BaudRate = c.BaudRate
	cfg.Rig.Calibration = cal
	cfg.Rig.CalibrationFile = ""

	useRig := cfg.Transport == config.Rig
	confirm := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Make the rig the default transport?").
			Value(&useRig),
	))
	if err := confirm.Run(); err != nil {
		return abortable(err)
	}
	if useRig {
		cfg.Transport = config.Rig
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Try it with: " + headerStyle.Render("diablo run --transport rig builtin:selftest"))
	return nil
}

// abortable turns a cancelled prompt into a clean exit.
func abortable(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return &exitError{code: 0, msg: "setup aborted"}
	}
	return err
}

// axisServo is a servo assigned to an axis.
type axisServo struct {
	id int
	*feetech.Servo
}

type rigInfo struct {
	port   string
	servos []feetech.FoundServo
}

func (c *SetupCommand) openBus(port string) (*feetech.Bus, error) {
	return feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: c.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
}

func (c *SetupCommand) findRig() (rigInfo, error) {
	fmt.Println("Scanning serial ports for servos...")

	ports, err := serial.GetPortsList()
	if err != nil {
		return rigInfo{}, fmt.Errorf("list ports: %w", err)
	}

	var rigs []rigInfo
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, err := c.openBus(port)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		servos, err := bus.Scan(ctx, minServoID, maxServoID)
		cancel()
		bus.Close()
		if err != nil || len(servos) == 0 {
			continue
		}

		fmt.Printf("  Found %d servo(s) on %s\n", len(servos), port)
		rigs = append(rigs, rigInfo{port: port, servos: servos})
	}

	switch len(rigs) {
	case 0:
		return rigInfo{}, errors.New("no servos found; make sure the rig is connected and powered on")
	case 1:
		return rigs[0], nil
	}

	var options []huh.Option[int]
	for i, r := range rigs {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%d servos)", r.port, len(r.servos)), i))
	}
	var choice int
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("Which port is the rig on?").
			Options(options...).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return rigInfo{}, abortable(err)
	}
	return rigs[choice], nil
}

// wiggle moves a servo briefly so the user can see which one it is.
func wiggle(ctx context.Context, servo *feetech.Servo) error {
	originalPos, err := servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	if err := servo.Enable(ctx); err != nil {
		return fmt.Errorf("enable servo: %w", err)
	}
	defer servo.Disable(ctx)

	wiggleAmount := 30
	moveTimeMs := 500
	for _, pos := range []int{originalPos + wiggleAmount, originalPos - wiggleAmount, originalPos} {
		servo.SetPositionWithTime(ctx, pos, moveTimeMs)
		time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	}
	return nil
}

// assignAxes wiggles each servo and asks which axis it drives.
func assignAxes(bus *feetech.Bus, servos []feetech.FoundServo) (map[motion.Axis]axisServo, error) {
	ctx := context.Background()
	assigned := make(map[motion.Axis]axisServo)

	for _, found := range servos {
		var free []motion.Axis
		for _, a := range motion.AllAxes() {
			if _, taken := assigned[a]; !taken {
				free = append(free, a)
			}
		}
		if len(free) == 0 {
			break
		}

		servo := feetech.NewServo(bus, found.ID, found.Model)
		fmt.Printf("\n  Wiggling servo %d...\n", found.ID)
		if err := wiggle(ctx, servo); err != nil {
			fmt.Printf("  %s\n", errorStyle.Render(err.Error()))
			continue
		}

		options := make([]huh.Option[string], 0, len(free)+1)
		for _, a := range free {
			options = append(options, huh.NewOption(string(a), string(a)))
		}
		options = append(options, huh.NewOption("Skip this servo", ""))

		var axis string
		form := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which axis does servo %d drive?", found.ID)).
				Description("The servo that just wiggled").
				Options(options...).
				Value(&axis),
		))
		if err := form.Run(); err != nil {
			return nil, err
		}
		if axis != "" {
			assigned[motion.Axis(axis)] = axisServo{id: found.ID, Servo: servo}
		}
	}
	return assigned, nil
}

// calibrate records the range of motion of every assigned servo while the
// user moves them by hand.
func calibrate(assigned map[motion.Axis]axisServo) (rig.Calibration, error) {
	ctx := context.Background()

	var axes []motion.Axis
	for _, a := range motion.AllAxes() {
		if servo, ok := assigned[a]; ok {
			servo.Disable(ctx)
			axes = append(axes, a)
		}
	}

	fmt.Println("Move each axis to its minimum AND maximum positions.")
	fmt.Println()

	model := calibrationModel{
		axes:         axes,
		servos:       assigned,
		curPositions: make(map[motion.Axis]int),
		minPositions: make(map[motion.Axis]int),
		maxPositions: make(map[motion.Axis]int),
	}
	for _, a := range axes {
		pos, _ := assigned[a].Position(ctx)
		model.curPositions[a] = pos
		model.minPositions[a] = pos
		model.maxPositions[a] = pos
	}

	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)
	if cm.aborted {
		return nil, &exitError{code: 0, msg: "setup aborted"}
	}

	cal := make(rig.Calibration, len(axes))
	for _, a := range axes {
		cal[a] = rig.AxisCalibration{
			ID:       assigned[a].id,
			RangeMin: cm.minPositions[a],
			RangeMax: cm.maxPositions[a],
		}
	}
	return cal, nil
}

func askInverted(cal rig.Calibration) error {
	var options []huh.Option[string]
	for _, a := range motion.AllAxes() {
		if _, ok := cal[a]; ok {
			options = append(options, huh.NewOption(string(a), string(a)))
		}
	}
	var inverted []string
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Which axes move the wrong way?").
			Description("Positive values should move forward, left, up, roll left and pitch up").
			Options(options...).
			Value(&inverted),
	))
	if err := form.Run(); err != nil {
		return err
	}
	for a, ac := range cal {
		if slices.Contains(inverted, string(a)) {
			ac.DriveMode = 1
			cal[a] = ac
		}
	}
	return nil
}

// Calibration TUI model
type calibrationModel struct {
	axes         []motion.Axis
	servos       map[motion.Axis]axisServo
	curPositions map[motion.Axis]int
	minPositions map[motion.Axis]int
	maxPositions map[motion.Axis]int
	quitting     bool
	aborted      bool
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.quitting = true
			return m, tea.Quit
		case "q", "ctrl+c":
			m.quitting = true
			m.aborted = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for _, a := range m.axes {
			pos, err := m.servos[a].Position(ctx)
			if err != nil {
				continue
			}
			m.curPositions[a] = pos
			m.minPositions[a] = min(m.minPositions[a], pos)
			m.maxPositions[a] = max(m.maxPositions[a], pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableAxisStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.axes))
	ranges := make([]int, 0, len(m.axes))
	for _, a := range m.axes {
		rangeSize := m.maxPositions[a] - m.minPositions[a]
		ranges = append(ranges, rangeSize)
		rows = append(rows, []string{
			string(a),
			fmt.Sprintf("%d", m.servos[a].id),
			fmt.Sprintf("%d", m.curPositions[a]),
			fmt.Sprintf("%d", m.minPositions[a]),
			fmt.Sprintf("%d", m.maxPositions[a]),
			fmt.Sprintf("%d", rangeSize),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Axis", "Servo", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableAxisStyle
			case 2:
				return tableCurrentStyle
			case 5:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done, q to abort"))

	return sb.String()
}

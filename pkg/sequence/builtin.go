package sequence

import (
	"slices"
	"time"

	"github.com/gwillem/diablo/pkg/motion"
)

var builtins = map[string]func() *File{
	"selftest":   selfTest,
	"stand-turn": standTurn,
}

// Builtin returns a fresh copy of the named builtin sequence.
func Builtin(name string) (*File, bool) {
	fn, ok := builtins[name]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// BuiltinNames returns the builtin sequence names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func seconds(s float64) *Duration {
	d := Duration(s * float64(time.Second))
	return &d
}

// selfTest exercises standing, crouching, turning, driving and looking.
func selfTest() *File {
	return &File{
		Name: "selftest",
		Steps: []Step{
			{Name: "stand up", ModeMark: motion.Bool(true), StandMode: motion.Bool(true), Up: motion.Float(1.0), Duration: seconds(2.0)},
			{Name: "crouch", ModeMark: motion.Bool(true), StandMode: motion.Bool(false), Up: motion.Float(-0.5), Duration: seconds(1.5)},
			{Name: "stand up again", ModeMark: motion.Bool(true), StandMode: motion.Bool(true), Up: motion.Float(1.0), Duration: seconds(1.5)},
			{Name: "turn left", Roll: motion.Float(0.3), Duration: seconds(1.5)},
			{Name: "turn right", Roll: motion.Float(-0.3), Duration: seconds(1.5)},
			{Name: "forward", Forward: motion.Float(0.5), Duration: seconds(2.0)},
			{Name: "look up", Pitch: motion.Float(0.3), Duration: seconds(1.0)},
			{Name: "look down", Pitch: motion.Float(-0.3), Duration: seconds(1.0)},
		},
	}
}

// standTurn stands for two seconds, then turns left for a second and a half.
func standTurn() *File {
	return &File{
		Name: "stand-turn",
		Steps: []Step{
			{Name: "stand", ModeMark: motion.Bool(true), Up: motion.Float(1.0), Duration: seconds(2.0)},
			{Name: "turn", Roll: motion.Float(0.3), Duration: seconds(1.5)},
		},
	}
}

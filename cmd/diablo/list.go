package main

import (
	"fmt"

	"github.com/gwillem/diablo/pkg/motion"
	"github.com/gwillem/diablo/pkg/sequence"
)

type ListCommand struct{}

func (c *ListCommand) Execute(args []string) error {
	for _, name := range sequence.BuiltinNames() {
		f, _ := sequence.Builtin(name)
		seq, err := f.Build(motion.Reject)
		if err != nil {
			return fmt.Errorf("builtin %s: %w", name, err)
		}
		fmt.Printf("%s  %s\n", headerStyle.Render(sequence.BuiltinPrefix+name),
			dimStyle.Render(fmt.Sprintf("%d steps, %s", seq.Len(), seq.Duration())))
	}
	return nil
}

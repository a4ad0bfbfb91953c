package ui

import (
	"github.com/charmbracelet/huh"
)

// MultiSelect shows an interactive multi-select prompt and returns the selected items.
// All options start selected.
func MultiSelect(message string, options []string) ([]string, error) {
	var selected []string
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, o).Selected(true)
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(message).
				Options(opts...).
				Value(&selected),
		),
	).Run()

	return selected, err
}

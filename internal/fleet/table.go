package fleet

import (
	"io"

	"github.com/joelmoss/vcsinfo/internal/ui"
)

// WriteTable writes one row per user: user, host, VCS, auth type, then either
// revision and branch or the error.
func (r Report) WriteTable(w io.Writer) {
	rows := [][]string{{ui.Bold("USER"), ui.Bold("HOST"), ui.Bold("VCS"), ui.Bold("AUTH"), ui.Bold("REVISION"), ui.Bold("BRANCH")}}
	for _, user := range r.Users() {
		res := r[user]
		kind := string(res.Kind)
		if kind == "" {
			kind = "-"
		}
		row := []string{user, ui.Dim(res.Host), ui.Blue(kind), string(res.AuthType)}
		if res.Outcome == OutcomeOK {
			row = append(row, res.Info.Revision, ui.Green(res.Info.Branch))
		} else {
			row = append(row, ui.Red(ui.OneLine(res.ErrorMessage())))
		}
		rows = append(rows, row)
	}
	ui.PrintTable(w, rows, 0)
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"salesetl/internal/etl"
	"salesetl/internal/gate"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func renderGate(w io.Writer, res gate.RunResult) {
	if len(res.Files) == 0 {
		return
	}
	t := newTable(w, fmt.Sprintf("validation %s: %d/%d accepted", res.RunID, res.Count(gate.Accepted), len(res.Files)))
	t.AppendHeader(table.Row{"File", "Kind", "Outcome", "Rows", "Report", "Detail"})
	for _, f := range res.Files {
		t.AppendRow(table.Row{f.File, f.Kind, f.Outcome, f.Rows, f.ReportPath, detail(f)})
	}
	t.Render()
}

// detail names the failed rules of a rejected file or the error of a failed one.
func detail(f gate.FileResult) string {
	switch f.Outcome {
	case gate.Rejected:
		if f.Report == nil {
			return ""
		}
		var failed []string
		for _, r := range f.Report.Failed() {
			failed = append(failed, fmt.Sprintf("%s %.2f", r.Rule, r.Observed.Fraction))
		}
		return strings.Join(failed, ", ")
	case gate.Failed:
		if f.Err != nil {
			return f.Err.Error()
		}
	}
	return ""
}

func renderCurated(w io.Writer, res etl.CurateResult) {
	t := newTable(w, "curated tables")
	t.AppendHeader(table.Row{"Table", "Rows", "Files", "Unchanged"})
	for _, c := range res.Tables {
		t.AppendRow(table.Row{c.Table, c.Rows, len(c.Files), c.Unchanged})
	}
	t.Render()

	j := newTable(w, "joins")
	j.AppendHeader(table.Row{"Dimension", "Key", "Applied", "Matched", "Columns"})
	for _, s := range res.Joins {
		cols := strings.Join(s.Columns, ", ")
		if !s.Applied {
			cols = s.Reason
		}
		j.AppendRow(table.Row{s.Kind, s.Key, s.Applied, s.Matched, cols})
	}
	j.Render()
}

func renderLoaded(w io.Writer, loaded []etl.Loaded) {
	if len(loaded) == 0 {
		return
	}
	t := newTable(w, "warehouse")
	t.AppendHeader(table.Row{"Table", "Rows"})
	for _, l := range loaded {
		t.AppendRow(table.Row{l.Table, l.Rows})
	}
	t.Render()
}

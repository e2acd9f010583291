package cli

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mgpai22/captionjob/internal/publish"
	"github.com/mgpai22/captionjob/internal/translate"
)

// renderArtifacts formats published captions as a table
func renderArtifacts(artifacts []publish.Artifact) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Language", "Cues", "Size", "URL"})

	for _, a := range artifacts {
		tw.AppendRow(table.Row{
			translate.LanguageName(a.Language) + " (" + a.Language + ")",
			strconv.Itoa(a.Cues),
			humanize.Bytes(uint64(a.Size)),
			a.URL,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

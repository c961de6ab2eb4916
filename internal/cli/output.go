package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// Format selects how command results are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an --output value. Empty means auto-detect.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want table, json or yaml)", s)
	}
}

// detectFormat picks table output for terminals and JSON for pipes.
func detectFormat(w io.Writer) Format {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return FormatTable
	}

	return FormatJSON
}

// tabular is implemented by results that can render as a table.
type tabular interface {
	headers() []string
	rows() [][]string
}

// render writes v in format. Table output requires v to be tabular.
func render(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)

	case FormatYAML:
		data, err := yaml.MarshalWithOptions(v, yaml.Indent(2), yaml.IndentSequence(false))
		if err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}

		_, err = w.Write(data)

		return err

	default:
		t, ok := v.(tabular)
		if !ok {
			return render(w, FormatJSON, v)
		}

		table := tablewriter.NewWriter(w)
		table.SetHeader(t.headers())
		table.SetAutoWrapText(false)
		table.AppendBulk(t.rows())
		table.Render()

		return nil
	}
}

type quoteView struct {
	ID       int64  `json:"id"       yaml:"id"`
	Text     string `json:"text"     yaml:"text"`
	Category string `json:"category" yaml:"category"`
}

type quoteList []quoteView

func newQuoteList(quotes []domain.Quote) quoteList {
	out := make(quoteList, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, quoteView{ID: q.ID, Text: q.Text, Category: q.Category})
	}

	return out
}

func (l quoteList) headers() []string { return []string{"ID", "Category", "Text"} }

func (l quoteList) rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, q := range l {
		rows = append(rows, []string{strconv.FormatInt(q.ID, 10), q.Category, q.Text})
	}

	return rows
}

type categoryList []string

func (l categoryList) headers() []string { return []string{"Category"} }

func (l categoryList) rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, c := range l {
		rows = append(rows, []string{c})
	}

	return rows
}

type syncView struct {
	Status  string `json:"status"  yaml:"status"`
	Policy  string `json:"policy"  yaml:"policy"`
	Fetched int    `json:"fetched" yaml:"fetched"`
	Added   int    `json:"added"   yaml:"added"`
	Updated int    `json:"updated" yaml:"updated"`
	Changed bool   `json:"changed" yaml:"changed"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

func (v syncView) headers() []string {
	return []string{"Status", "Policy", "Fetched", "Added", "Updated", "Message"}
}

func (v syncView) rows() [][]string {
	return [][]string{{
		v.Status,
		v.Policy,
		strconv.Itoa(v.Fetched),
		strconv.Itoa(v.Added),
		strconv.Itoa(v.Updated),
		v.Message,
	}}
}

type importView struct {
	Added   int `json:"added"   yaml:"added"`
	Updated int `json:"updated" yaml:"updated"`
	Total   int `json:"total"   yaml:"total"`
}

func (v importView) headers() []string { return []string{"Added", "Updated", "Total"} }

func (v importView) rows() [][]string {
	return [][]string{{strconv.Itoa(v.Added), strconv.Itoa(v.Updated), strconv.Itoa(v.Total)}}
}

type filterView struct {
	Category string `json:"category" yaml:"category"`
}

func (v filterView) headers() []string { return []string{"Filter"} }

func (v filterView) rows() [][]string { return [][]string{{v.Category}} }

type versionView struct {
	Version   string `json:"version"   yaml:"version"`
	Commit    string `json:"commit"    yaml:"commit"`
	BuildTime string `json:"buildTime" yaml:"buildTime"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
}

func (v versionView) headers() []string { return []string{"Version", "Commit", "Built", "Go"} }

func (v versionView) rows() [][]string {
	return [][]string{{v.Version, v.Commit, v.BuildTime, v.GoVersion}}
}

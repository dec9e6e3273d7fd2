package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sfcls/internal/section"
	"sfcls/internal/source"
)

var sectionsFormat string

var sectionsCmd = &cobra.Command{
	Use:          "sections [flags] file.sfc",
	Short:        "Dump the extracted sections of a component file",
	Long:         `Sections splits a component file into its template, script and style blocks and prints the block table`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runSections,
}

func init() {
	sectionsCmd.Flags().StringVar(&sectionsFormat, "format", "pretty", "output format (pretty|json)")
}

type sectionPayload struct {
	Kind      string            `json:"kind"`
	Tag       string            `json:"tag"`
	Lang      string            `json:"lang,omitempty"`
	Start     uint32            `json:"start"`
	End       uint32            `json:"end"`
	TagStart  uint32            `json:"tag_start"`
	StartLine uint32            `json:"start_line"`
	StartCol  uint32            `json:"start_col"`
	Ignore    bool              `json:"ignore,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

func runSections(cmd *cobra.Command, args []string) error {
	docs := source.NewDocSet()
	id, err := docs.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	doc := docs.Get(id)
	secs := section.Extract(doc.Content)

	payload := make([]sectionPayload, 0, 4)
	for _, sec := range secs.All() {
		start, _ := docs.Resolve(source.Span{Doc: id, Start: sec.Start, End: sec.End})
		payload = append(payload, sectionPayload{
			Kind:      sec.Kind.String(),
			Tag:       sec.Tag,
			Lang:      sec.Lang,
			Start:     sec.Start,
			End:       sec.End,
			TagStart:  sec.TagStart,
			StartLine: start.Line,
			StartCol:  start.Col,
			Ignore:    sec.Ignore,
			Attrs:     sec.Attrs,
		})
	}

	switch sectionsFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case "pretty":
		for _, p := range payload {
			lang := p.Lang
			if lang == "" {
				lang = "-"
			}
			fmt.Fprintf(os.Stdout, "%-12s [%d..%d) line %d lang=%s", p.Kind, p.Start, p.End, p.StartLine, lang)
			if p.Ignore {
				fmt.Fprint(os.Stdout, " (ignored)")
			}
			fmt.Fprintln(os.Stdout)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", sectionsFormat)
	}
}

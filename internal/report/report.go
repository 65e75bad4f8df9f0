// Package report renders split summaries and fatal errors for the terminal.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asynkron/patchsplit/pkg/patch"
)

// Summary carries what a report needs besides the split itself.
type Summary struct {
	Profile string
	Job     patch.Job
	DryRun  bool
	Results []patch.Result
}

// Markdown builds a markdown description of a split.
func Markdown(split *patch.Split, s Summary) string {
	var b strings.Builder
	title := "Patch split"
	if s.DryRun {
		title = "Patch split (dry run)"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s.Profile != "" {
		fmt.Fprintf(&b, "- **Profile:** %s\n", s.Profile)
	}
	fmt.Fprintf(&b, "- **Input:** `%s`\n", s.Job.Input)
	fmt.Fprintf(&b, "- **Marker:** `%s`\n", split.Marker)
	fmt.Fprintf(&b, "- **Split at:** line %d (body line %d)\n", split.Line+1, split.Index+1)
	if split.Matches > 1 {
		fmt.Fprintf(&b, "- **Matches:** %d, the first one was used\n", split.Matches)
	}
	fmt.Fprintf(&b, "- **Ours:** `%s` (%d body lines)\n", s.Job.OursPath, len(split.OursLines))
	fmt.Fprintf(&b, "- **Existing:** `%s` (%d body lines)\n", s.Job.ExistingPath, len(split.ExistingLines))

	if len(s.Results) > 0 {
		b.WriteString("\n| Status | Path |\n|---|---|\n")
		for _, r := range s.Results {
			fmt.Fprintf(&b, "| %s | %s |\n", r.Status, r.Path)
		}
	}

	b.WriteString("\n```diff\n")
	for _, line := range split.Header {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(split.MarkerLine())
	b.WriteString("\n```\n")
	return b.String()
}

// Renderer writes reports and errors, styling them when the writer is a
// colour terminal.
type Renderer struct {
	out    io.Writer
	styled bool
	style  *lipgloss.Renderer
	width  int
}

// NewRenderer inspects out to decide whether to style output.
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = io.Discard
	}
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = termenv.NewOutput(f).Profile != termenv.Ascii
	}
	return newRenderer(out, styled)
}

// NewPlainRenderer never styles output.
func NewPlainRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = io.Discard
	}
	return newRenderer(out, false)
}

func newRenderer(out io.Writer, styled bool) *Renderer {
	style := lipgloss.NewRenderer(out)
	if !styled {
		style.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{out: out, styled: styled, style: style, width: 80}
}

// Styled reports whether output is decorated.
func (r *Renderer) Styled() bool {
	return r.styled
}

// Report renders markdown, through glamour when styled.
func (r *Renderer) Report(markdown string) error {
	if !r.styled {
		_, err := io.WriteString(r.out, markdown)
		return err
	}
	tr, err := glam.NewTermRenderer(
		glam.WithStylePath("dark"),
		glam.WithWordWrap(r.width),
	)
	if err != nil {
		return fmt.Errorf("report: create renderer: %w", err)
	}
	rendered, err := tr.Render(markdown)
	if err != nil {
		return fmt.Errorf("report: render: %w", err)
	}
	_, err = io.WriteString(r.out, rendered)
	return err
}

// Error writes a single fatal error line.
func (r *Renderer) Error(err error) {
	if err == nil {
		return
	}
	prefix := r.style.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Render("error:")
	fmt.Fprintf(r.out, "%s %s\n", prefix, err.Error())
}

// Profiles writes one line per profile.
func (r *Renderer) Profiles(lines []string) {
	name := r.style.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	for _, line := range lines {
		head, rest, _ := strings.Cut(line, "\t")
		fmt.Fprintf(r.out, "%s\t%s\n", name.Render(head), rest)
	}
}

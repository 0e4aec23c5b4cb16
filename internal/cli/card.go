package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Kind selects the color and marker of a card.
type Kind int

const (
	KindSuccess Kind = iota
	KindError
	KindWarn
	KindInfo
)

var kindStyles = map[Kind]struct {
	marker string
	color  *color.Color
}{
	KindSuccess: {"✔", color.New(color.FgGreen, color.Bold)},
	KindError:   {"✖", color.New(color.FgRed, color.Bold)},
	KindWarn:    {"!", color.New(color.FgYellow, color.Bold)},
	KindInfo:    {"i", color.New(color.FgBlue, color.Bold)},
}

type Field struct {
	Name  string
	Value string
}

// Card is a titled block of name/value lines printed after a command.
type Card struct {
	Kind   Kind
	Title  string
	Fields []Field
	Lines  []string
}

func (c *Card) Add(name, value string) *Card {
	c.Fields = append(c.Fields, Field{Name: name, Value: value})
	return c
}

func (c *Card) Line(format string, args ...any) *Card {
	c.Lines = append(c.Lines, fmt.Sprintf(format, args...))
	return c
}

func (c Card) Render(w io.Writer) {
	style := kindStyles[c.Kind]
	fmt.Fprintln(w, style.color.Sprintf("%s %s", style.marker, c.Title))

	width := 0
	for _, f := range c.Fields {
		width = max(width, len(f.Name))
	}
	label := color.New(color.Faint)
	for _, f := range c.Fields {
		fmt.Fprintf(w, "  %s %s\n", label.Sprintf("%-*s", width+1, f.Name+":"), f.Value)
	}
	for _, l := range c.Lines {
		fmt.Fprintf(w, "    %s\n", l)
	}
}

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	cardWidth = 36
	cardGap   = 1
)

// Renderer draws cards for one output and colour profile.
type Renderer struct {
	title  lipgloss.Style
	card   lipgloss.Style
	faint  lipgloss.Style
	badges map[Badge]lipgloss.Style
}

// NewRenderer returns a Renderer writing styles for w with the given colour
// profile. The profile is fixed up front so output does not depend on the
// environment it runs in.
func NewRenderer(w io.Writer, profile termenv.Profile) *Renderer {
	lip := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	lip.SetColorProfile(profile)

	badge := func(color string) lipgloss.Style {
		return lip.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	}
	return &Renderer{
		title: lip.NewStyle().Bold(true),
		card: lip.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(cardWidth),
		faint: lip.NewStyle().Foreground(lipgloss.Color("245")),
		badges: map[Badge]lipgloss.Style{
			BadgeOnline:  badge("42"),
			BadgeOffline: badge("244"),
			BadgeError:   badge("196"),
		},
	}
}

var plain = NewRenderer(io.Discard, termenv.Ascii)

// Board lays cards out without colour. See Renderer.Board.
func Board(title string, cards []CardView, width int) string {
	return plain.Board(title, cards, width)
}

// Card draws a single card box.
func (r *Renderer) Card(c CardView) string {
	inner := cardWidth - 2 // padding
	head := r.title.Render(c.Title)
	badge := r.badges[c.Badge].Render(string(c.Badge))
	space := inner - lipgloss.Width(head) - lipgloss.Width(badge)
	if space < 1 {
		space = 1
	}

	lines := make([]string, 0, len(c.Lines)+2)
	lines = append(lines, head+strings.Repeat(" ", space)+badge)
	lines = append(lines, c.Lines...)
	lines = append(lines, r.faint.Render(footer(c)))
	return r.card.Render(strings.Join(lines, "\n"))
}

func footer(c CardView) string {
	updated := Placeholder
	if !c.UpdatedAt.IsZero() {
		updated = c.UpdatedAt.Format("15:04:05")
	}
	avail := Placeholder
	if c.Availability != nil {
		avail = fmt.Sprintf("%.0f%%", *c.Availability)
	}
	return "updated " + updated + "  avail " + avail
}

// Board draws a header and the cards in rows that fit width columns. At
// least one card is placed per row however narrow width is.
func (r *Renderer) Board(title string, cards []CardView, width int) string {
	perRow := (width + cardGap) / (cardWidth + 2 + cardGap)
	if perRow < 1 {
		perRow = 1
	}

	var rows []string
	for start := 0; start < len(cards); start += perRow {
		end := start + perRow
		if end > len(cards) {
			end = len(cards)
		}
		boxes := make([]string, 0, 2*(end-start))
		for i, c := range cards[start:end] {
			if i > 0 {
				boxes = append(boxes, strings.Repeat(" ", cardGap))
			}
			boxes = append(boxes, r.Card(c))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	}

	header := r.title.Render(title)
	if len(rows) == 0 {
		return header + "\n" + r.faint.Render("no sources configured")
	}
	return header + "\n" + lipgloss.JoinVertical(lipgloss.Left, rows...)
}

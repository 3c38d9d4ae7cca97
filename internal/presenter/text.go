package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/VissentvNoord/lobby-system/pkg/types"
)

var (
	colorBorder = lipgloss.Color("#3F4451")
	colorTitle  = lipgloss.Color("#C678DD")
	colorHost   = lipgloss.Color("#E5C07B")
	colorMuted  = lipgloss.Color("#828997")
)

// Text draws boxed lobby cards to an io.Writer.
type Text struct {
	mu  sync.Mutex
	out io.Writer

	box   lipgloss.Style
	title lipgloss.Style
	host  lipgloss.Style
	muted lipgloss.Style
}

var _ Presenter = (*Text)(nil)

func NewText(out io.Writer) *Text {
	// The renderer picks its color profile from out, so plain buffers get plain text.
	r := lipgloss.NewRenderer(out)
	return &Text{
		out: out,
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
		title: r.NewStyle().Foreground(colorTitle).Bold(true),
		host:  r.NewStyle().Foreground(colorHost),
		muted: r.NewStyle().Foreground(colorMuted),
	}
}

func (t *Text) DisplayLobby(l types.Lobby, isHost bool) {
	role := "member"
	if isHost {
		role = "host"
	}
	lines := []string{
		t.title.Render(l.Name) + " " + t.muted.Render("("+role+")"),
		fmt.Sprintf("code %s  players %d/%d", l.Code, len(l.Players), l.MaxPlayers),
	}
	if mode := l.GameMode(); mode != "" {
		lines = append(lines, "mode "+mode)
	}
	if code := l.RelayCode(); code != types.NoRelay {
		lines = append(lines, "relay "+code)
	}
	for _, p := range l.Players {
		entry := fmt.Sprintf("- %s %s", p.DisplayName(), t.muted.Render(p.ID))
		if p.ID == l.HostID {
			entry = t.host.Render(entry + " *")
		}
		lines = append(lines, entry)
	}
	t.write(t.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func (t *Text) ListLobbies(lobbies []types.Lobby) {
	if len(lobbies) == 0 {
		t.write(t.muted.Render("no open lobbies"))
		return
	}
	var b strings.Builder
	b.WriteString(t.title.Render("open lobbies"))
	for _, l := range lobbies {
		fmt.Fprintf(&b, "\n%-20s %s %d/%d", l.Name, l.Code, len(l.Players), l.MaxPlayers)
		if mode := l.GameMode(); mode != "" {
			b.WriteString(" " + t.muted.Render(mode))
		}
	}
	t.write(t.box.Render(b.String()))
}

func (t *Text) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, s)
}

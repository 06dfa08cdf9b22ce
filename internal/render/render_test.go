package render

import (
	"testing"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

func line(texts ...string) domain.Line {
	l := make(domain.Line, len(texts))
	for i, t := range texts {
		l[i] = domain.Run{Text: t}
	}
	return l
}

func lineText(l ports.VisualLine) string {
	var s string
	for _, r := range l.Runs {
		s += r.Text
	}
	return s
}

func TestProjector_StripsTrailingBlankLines(t *testing.T) {
	frame := domain.Frame{Content: []domain.Line{
		line("one"),
		line("two"),
		line("   "),
		line(""),
		line("\t "),
	}}

	got := NewProjector().Render(frame, ports.DisplayConfig{MaxWidth: 80, MaxLines: 40})
	if len(got) != 2 {
		t.Fatalf("rendered %d lines, want 2", len(got))
	}
	if lineText(got[1]) != "two" {
		t.Errorf("last line = %q, want two", lineText(got[1]))
	}
}

func TestProjector_KeepsNewestLines(t *testing.T) {
	frame := domain.Frame{Content: []domain.Line{
		line("a"), line("b"), line("c"), line("d"),
	}}

	got := NewProjector().Render(frame, ports.DisplayConfig{MaxWidth: 80, MaxLines: 2})
	if len(got) != 2 {
		t.Fatalf("rendered %d lines, want 2", len(got))
	}
	if lineText(got[0]) != "c" || lineText(got[1]) != "d" {
		t.Errorf("lines = %q, %q, want newest c, d", lineText(got[0]), lineText(got[1]))
	}
}

func TestProjector_ClipsRunAtWidth(t *testing.T) {
	frame := domain.Frame{Content: []domain.Line{
		{
			{Text: "abcd", FG: "red"},
			{Text: "efgh", Bold: true},
		},
	}}

	got := NewProjector().Render(frame, ports.DisplayConfig{MaxWidth: 6, MaxLines: 10})
	if len(got) != 1 {
		t.Fatalf("rendered %d lines, want 1", len(got))
	}
	runs := got[0].Runs
	if len(runs) != 2 {
		t.Fatalf("runs = %+v, want 2", runs)
	}
	if runs[0].Text != "abcd" || runs[0].FG != "red" {
		t.Errorf("first run = %+v", runs[0])
	}
	// The straddling run is split; its styling survives the cut.
	if runs[1].Text != "ef" || !runs[1].Bold {
		t.Errorf("clipped run = %+v, want ef bold", runs[1])
	}
}

func TestProjector_WidthCountsRunes(t *testing.T) {
	frame := domain.Frame{Content: []domain.Line{
		{{Text: "héllø wörld"}},
	}}

	got := NewProjector().Render(frame, ports.DisplayConfig{MaxWidth: 5, MaxLines: 1})
	if text := lineText(got[0]); text != "héllø" {
		t.Errorf("clipped text = %q, want héllø", text)
	}
}

func TestProjector_ZeroBoundsPassThrough(t *testing.T) {
	frame := domain.Frame{Content: []domain.Line{
		line("one"), line("two"),
	}}

	got := NewProjector().Render(frame, ports.DisplayConfig{})
	if len(got) != 2 {
		t.Fatalf("rendered %d lines, want 2 unbounded", len(got))
	}
	if lineText(got[0]) != "one" {
		t.Errorf("line = %q", lineText(got[0]))
	}
}

func TestProjector_AllBlankFrame(t *testing.T) {
	frame := domain.Frame{Content: []domain.Line{
		line("  "), line(""),
	}}

	got := NewProjector().Render(frame, ports.DisplayConfig{MaxWidth: 10, MaxLines: 10})
	if len(got) != 0 {
		t.Errorf("rendered %d lines from blank frame, want 0", len(got))
	}
}

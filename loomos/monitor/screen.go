package monitor

import (
	"fmt"
	"image/color"

	"loom/hal"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const (
	fontHeight = 10
	fontOffset = 8
	tableRows  = 12
)

var (
	fgColor  = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	dimColor = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	bgColor  = color.RGBA{A: 0xFF}
)

// Screen splits the framebuffer into a thread table on top and a scrolling
// console below.
type Screen struct {
	fb    hal.Framebuffer
	title string

	table   *band
	console *band
	term    *tinyterm.Terminal
	font    tinyfont.Fonter
}

// NewScreen returns a screen drawing on fb, or nil if there is nothing to
// draw on.
func NewScreen(fb hal.Framebuffer, title string) *Screen {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return nil
	}
	tableHeight := (tableRows + 3) * fontHeight

	s := &Screen{
		fb:      fb,
		title:   title,
		table:   newBand(fb, 0, tableHeight),
		console: newBand(fb, tableHeight, fb.Height()-tableHeight),
		font:    &proggy.TinySZ8pt7b,
	}
	fb.ClearRGB(0, 0, 0)

	s.term = tinyterm.NewTerminal(s.console)
	s.term.Configure(&tinyterm.Config{
		Font:              s.font,
		FontHeight:        fontHeight,
		FontOffset:        fontOffset,
		UseSoftwareScroll: true,
	})
	return s
}

// WriteLine appends one line to the console area.
func (s *Screen) WriteLine(line string) {
	_, _ = s.term.Write([]byte(line))
	_, _ = s.term.Write([]byte{'\n'})
}

// DrawTable redraws the thread table from snap.
func (s *Screen) DrawTable(snap Snapshot) {
	w, h := s.table.Size()
	_ = s.table.FillRectangle(0, 0, w, h, bgColor)

	y := int16(fontOffset)
	line := func(c color.RGBA, format string, args ...any) {
		tinyfont.WriteLine(s.table, s.font, 0, y, fmt.Sprintf(format, args...), c)
		y += fontHeight
	}

	line(fgColor, "%s  time %d  dispatches %d  finished %d", s.title, snap.Time, snap.Dispatches, snap.Finished)
	line(dimColor, "running: %s", snap.Current)
	line(dimColor, "%4s  %-24s  %-8s  %s", "id", "name", "status", "runs")
	for i, r := range snap.Rows {
		if i == tableRows-1 && len(snap.Rows) > tableRows {
			line(dimColor, "... %d more", len(snap.Rows)-i)
			break
		}
		line(fgColor, "%4d  %-24s  %-8s  %d", r.ID, fitText(r.Name, 24), r.Status, r.Dispatches)
	}
}

// Present flushes the framebuffer.
func (s *Screen) Present() error {
	return s.fb.Present()
}

func fitText(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}

package monitor

import (
	"image/color"

	"loom/hal"

	"tinygo.org/x/drivers"
)

// band adapts a horizontal strip of an RGB565 framebuffer to the tinyterm
// display interface. Coordinates are relative to the top of the strip.
type band struct {
	fb     hal.Framebuffer
	y0     int
	height int
}

func newBand(fb hal.Framebuffer, y0, height int) *band {
	if fb != nil {
		y0 = clampInt(y0, 0, fb.Height())
		height = clampInt(height, 0, fb.Height()-y0)
	}
	return &band{fb: fb, y0: y0, height: height}
}

func (d *band) usable() bool {
	return d.fb != nil && d.fb.Format() == hal.PixelFormatRGB565 && d.fb.Buffer() != nil
}

func (d *band) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.height)
}

func (d *band) SetPixel(x, y int16, c color.RGBA) {
	if !d.usable() {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.height {
		return
	}
	buf := d.fb.Buffer()
	off := (d.y0+iy)*d.fb.StrideBytes() + ix*2
	if off+1 >= len(buf) {
		return
	}
	pixel := hal.RGB565(c)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *band) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d *band) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if !d.usable() {
		return nil
	}
	w := d.fb.Width()
	x0 := clampInt(int(x), 0, w)
	y0 := clampInt(int(y), 0, d.height)
	x1 := clampInt(int(x)+int(width), 0, w)
	y1 := clampInt(int(y)+int(height), 0, d.height)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	pixel := hal.RGB565(c)
	lo, hi := byte(pixel), byte(pixel>>8)

	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := (d.y0 + py) * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				continue
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
	return nil
}

// ScrollUp shifts the strip up by lines and clears the exposed rows.
// tinyterm uses it for software scrolling.
func (d *band) ScrollUp(lines int16, bg color.RGBA) error {
	if !d.usable() || lines <= 0 {
		return nil
	}
	n := int(lines)
	if n >= d.height {
		return d.FillRectangle(0, 0, int16(d.fb.Width()), int16(d.height), bg)
	}

	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	dst := d.y0 * stride
	src := (d.y0 + n) * stride
	end := (d.y0 + d.height) * stride
	if end > len(buf) {
		end = len(buf)
	}
	if src < end {
		copy(buf[dst:], buf[src:end])
	}
	return d.FillRectangle(0, int16(d.height-n), int16(d.fb.Width()), int16(n), bg)
}

func (d *band) SetScroll(int16)                    {}
func (d *band) SetRotation(drivers.Rotation) error { return nil }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

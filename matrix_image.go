package main

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/elijahnyp/station_controller/state"
	"github.com/elijahnyp/station_controller/station"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

const (
	cellWidth   = 48
	cellHeight  = 24
	labelWidth  = 56
	titleHeight = 24
	margin      = 8
	cellGap     = 2
)

var (
	colorBackground = color.RGBA{24, 24, 24, 255}
	colorInactive   = color.RGBA{64, 64, 64, 255}
	colorActive     = color.RGBA{0, 170, 60, 255}
	colorDisabled   = color.RGBA{40, 40, 40, 255}
	colorText       = color.RGBA{230, 230, 230, 255}
	colorMuted      = color.RGBA{120, 120, 120, 255}
)

type gridKey struct {
	row string
	col string
}

// matrixGroup is one panel of the snapshot: all cells switching the same
// radio selector, laid out radio value by antenna value. Rows and columns
// keep the order in which the layout first names them.
type matrixGroup struct {
	selector state.Selector
	rows     []string
	cols     []string
	cells    map[gridKey]station.CellStatus
}

func shortName(sel state.Selector, value int) string {
	return fmt.Sprintf("%s%d", strings.ToUpper(string(sel)), value)
}

func groupCells(cells []station.CellStatus) []*matrixGroup {
	var groups []*matrixGroup
	bySelector := map[state.Selector]*matrixGroup{}
	for _, cell := range cells {
		g, ok := bySelector[cell.RadioSelector]
		if !ok {
			g = &matrixGroup{selector: cell.RadioSelector, cells: map[gridKey]station.CellStatus{}}
			bySelector[cell.RadioSelector] = g
			groups = append(groups, g)
		}
		key := gridKey{
			row: shortName(cell.RadioSelector, cell.RadioValue),
			col: shortName(cell.AntennaSelector, cell.AntennaValue),
		}
		if _, seen := g.cells[key]; seen {
			continue
		}
		g.cells[key] = cell
		g.rows = appendUnique(g.rows, key.row)
		g.cols = appendUnique(g.cols, key.col)
	}
	return groups
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// RenderMatrix draws the projection as one grid per radio selector. Active
// cells are green, disabled cells are dimmed.
func RenderMatrix(p station.Projection) image.Image {
	groups := groupCells(p.Cells)

	maxCols := 1
	height := margin + titleHeight
	for _, g := range groups {
		if len(g.cols) > maxCols {
			maxCols = len(g.cols)
		}
		height += titleHeight + cellHeight*(len(g.rows)+1) + margin
	}
	width := margin*2 + labelWidth + maxCols*cellWidth

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill(img, img.Bounds(), colorBackground)
	drawText(img, p.State.String(), margin, margin+16, colorText, inconsolata.Bold8x16)

	y := margin + titleHeight
	for _, g := range groups {
		drawText(img, strings.ToUpper(string(g.selector)), margin, y+16, colorText, inconsolata.Bold8x16)
		y += titleHeight

		for i, col := range g.cols {
			x := margin + labelWidth + i*cellWidth
			drawCentered(img, col, image.Rect(x, y, x+cellWidth, y+cellHeight), colorMuted)
		}
		y += cellHeight

		for _, row := range g.rows {
			drawText(img, row, margin, y+17, colorMuted, inconsolata.Regular8x16)
			for i, col := range g.cols {
				cell, ok := g.cells[gridKey{row: row, col: col}]
				if !ok {
					continue
				}
				x := margin + labelWidth + i*cellWidth
				rect := image.Rect(x+cellGap, y+cellGap, x+cellWidth-cellGap, y+cellHeight-cellGap)
				switch {
				case cell.Disabled:
					fill(img, rect, colorDisabled)
				case cell.Active:
					fill(img, rect, colorActive)
					drawCentered(img, "ON", rect, colorText)
				default:
					fill(img, rect, colorInactive)
				}
			}
			y += cellHeight
		}
		y += margin
	}
	return img
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func drawText(img draw.Image, s string, x, y int, c color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(s)
}

func drawCentered(img draw.Image, s string, r image.Rectangle, c color.Color) {
	face := inconsolata.Regular8x16
	w := font.MeasureString(face, s).Ceil()
	x := r.Min.X + (r.Dx()-w)/2
	y := r.Min.Y + (r.Dy()+face.Ascent)/2
	drawText(img, s, x, y, c, face)
}

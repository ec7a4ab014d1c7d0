package detection

import (
	"image"
	"math"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// Contour is a closed outer border, stored as an ordered list of pixel
// coordinates. Straight horizontal, vertical and diagonal runs are compressed to
// their end points.
type Contour []Point

// Area returns the enclosed polygon area using the shoelace formula.
// Contours with fewer than three points enclose no area.
func (c Contour) Area() float64 {
	if len(c) < 3 {
		return 0
	}
	var sum float64
	for i := range c {
		j := (i + 1) % len(c)
		sum += float64(c[i].X*c[j].Y - c[j].X*c[i].Y)
	}
	return math.Abs(sum) / 2
}

// Perimeter returns the closed arc length of the contour.
func (c Contour) Perimeter() float64 {
	if len(c) < 2 {
		return 0
	}
	var sum float64
	for i := range c {
		j := (i + 1) % len(c)
		dx := float64(c[j].X - c[i].X)
		dy := float64(c[j].Y - c[i].Y)
		sum += math.Sqrt(dx*dx + dy*dy)
	}
	return sum
}

// LargestContour returns the contour with the largest area. The first contour
// wins ties. ok is false when contours is empty.
func LargestContour(contours []Contour) (largest Contour, ok bool) {
	best := -1.0
	for _, c := range contours {
		if a := c.Area(); a > best {
			best = a
			largest = c
			ok = true
		}
	}
	return largest, ok
}

// Neighbour offsets in counterclockwise order on screen, starting east.
var directions = [8]Point{
	{1, 0}, {1, -1}, {0, -1}, {-1, -1},
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1},
}

const dirWest = 4

// FindExternalContours returns the outer borders of the foreground components of
// a binary mask (any non-zero pixel is foreground).
//
// Components lying inside a hole of another component are not reported, so the
// result describes only the outermost shapes.
//
// # Algorithm
//
//  1. Flood-fill the background from the image border to mark the outside region
//  2. Scan in raster order. The first unvisited foreground pixel of each
//     8-connected component is its top-left-most pixel
//  3. If the pixel to its left belongs to the outside region, follow the outer
//     border (Suzuki-Abe border following) back to the start pixel
//  4. Flood-fill the component to mark it visited
//  5. Compress straight runs of the border to their end points
func FindExternalContours(mask *image.Gray) []Contour {
	bounds := mask.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	fg := make([][]bool, height)
	for y := 0; y < height; y++ {
		fg[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			fg[y][x] = mask.GrayAt(x+bounds.Min.X, y+bounds.Min.Y).Y != 0
		}
	}

	outside := markOutside(fg, width, height)

	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([]Contour, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !fg[y][x] || visited[y][x] {
				continue
			}
			external := x == 0 || outside[y][x-1]
			var border Contour
			if external {
				border = traceBorder(fg, Point{X: x, Y: y}, width, height)
			}
			floodFill(fg, visited, x, y, width, height)
			if !external {
				continue
			}

			compressed := compress(border)
			for i := range compressed {
				compressed[i].X += bounds.Min.X
				compressed[i].Y += bounds.Min.Y
			}
			contours = append(contours, compressed)
		}
	}

	return contours
}

// markOutside flags background pixels 4-connected to the image border.
func markOutside(fg [][]bool, width, height int) [][]bool {
	outside := make([][]bool, height)
	for y := 0; y < height; y++ {
		outside[y] = make([]bool, width)
	}

	stack := make([]Point, 0)
	push := func(x, y int) {
		if x < 0 || x >= width || y < 0 || y >= height {
			return
		}
		if fg[y][x] || outside[y][x] {
			return
		}
		outside[y][x] = true
		stack = append(stack, Point{X: x, Y: y})
	}

	for x := 0; x < width; x++ {
		push(x, 0)
		push(x, height-1)
	}
	for y := 0; y < height; y++ {
		push(0, y)
		push(width-1, y)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p.X+1, p.Y)
		push(p.X-1, p.Y)
		push(p.X, p.Y+1)
		push(p.X, p.Y-1)
	}

	return outside
}

// traceBorder follows the outer border of the component containing start,
// which must be its top-left-most pixel.
func traceBorder(fg [][]bool, start Point, width, height int) Contour {
	isFG := func(p Point) bool {
		return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height && fg[p.Y][p.X]
	}
	step := func(p Point, dir int) Point {
		d := directions[(dir%8+8)%8]
		return Point{X: p.X + d.X, Y: p.Y + d.Y}
	}
	dirTo := func(from, to Point) int {
		for i, d := range directions {
			if from.X+d.X == to.X && from.Y+d.Y == to.Y {
				return i
			}
		}
		return 0
	}

	// Search clockwise from the west neighbour for the first foreground pixel.
	first := Point{}
	found := false
	for i := 0; i < 8; i++ {
		p := step(start, dirWest-i)
		if isFG(p) {
			first = p
			found = true
			break
		}
	}
	if !found {
		return Contour{start}
	}

	border := Contour{}
	prev, cur := first, start
	for {
		base := dirTo(cur, prev)
		var next Point
		for i := 1; i <= 8; i++ {
			p := step(cur, base+i)
			if isFG(p) {
				next = p
				break
			}
		}

		border = append(border, cur)
		if next == start && cur == first {
			break
		}
		prev, cur = cur, next
	}

	return border
}

// floodFill marks every pixel of the 8-connected component containing
// (startX, startY) as visited.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large components.
func floodFill(fg, visited [][]bool, startX, startY, width, height int) {
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !fg[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// compress drops border points that continue the previous step's direction.
func compress(border Contour) Contour {
	n := len(border)
	if n < 3 {
		return append(Contour(nil), border...)
	}
	out := make(Contour, 0, n)
	for i := 0; i < n; i++ {
		prev := border[(i-1+n)%n]
		cur := border[i]
		next := border[(i+1)%n]
		in := Point{X: cur.X - prev.X, Y: cur.Y - prev.Y}
		outDir := Point{X: next.X - cur.X, Y: next.Y - cur.Y}
		if in != outDir {
			out = append(out, cur)
		}
	}
	if len(out) == 0 {
		out = append(out, border[0])
	}
	return out
}

package game

import "math"

// Rect 轴对齐矩形（像素坐标，左上角为原点）
type Rect struct {
	X, Y, W, H float64
}

// Intersects AABB 相交判定；边缘相接不算碰撞
func Intersects(a, b Rect) bool {
	return a.X < b.X+b.W &&
		a.X+a.W > b.X &&
		a.Y < b.Y+b.H &&
		a.Y+a.H > b.Y
}

// CollidesWithMap 判断矩形是否与任一实心格相交。
// 只检查矩形覆盖到的格子范围，结果与全图扫描一致。
func CollidesWithMap(r Rect, g *Grid) bool {
	if g == nil || g.rows == 0 || g.cols == 0 {
		return false
	}
	ts := g.tileSize
	c0 := clampIndex(int(math.Floor(r.X/ts)), g.cols)
	c1 := clampIndex(int(math.Floor((r.X+r.W)/ts)), g.cols)
	r0 := clampIndex(int(math.Floor(r.Y/ts)), g.rows)
	r1 := clampIndex(int(math.Floor((r.Y+r.H)/ts)), g.rows)
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			if g.SolidAt(row, col) && Intersects(r, g.CellRect(row, col)) {
				return true
			}
		}
	}
	return false
}

// collidesWithMapScan 逐格全图扫描，作为 CollidesWithMap 的对照实现
func collidesWithMapScan(r Rect, g *Grid) bool {
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			if g.SolidAt(row, col) && Intersects(r, g.CellRect(row, col)) {
				return true
			}
		}
	}
	return false
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

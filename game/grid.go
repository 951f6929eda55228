package game

import "errors"

var (
	// ErrRaggedGrid 各行长度不一致
	ErrRaggedGrid = errors.New("game: grid rows have different lengths")
	// ErrTileSize 格子边长必须为正数
	ErrTileSize = errors.New("game: tile size must be positive")
)

// Grid 静态地图的实心格查询表，加载后只读
type Grid struct {
	rows     int
	cols     int
	tileSize float64
	solid    []bool // 行优先存储
}

// NewGrid 由装饰层的实心标记构造地图；solid[row][col] 为 true 表示不可通行
func NewGrid(solid [][]bool, tileSize float64) (*Grid, error) {
	if tileSize <= 0 {
		return nil, ErrTileSize
	}
	rows := len(solid)
	cols := 0
	if rows > 0 {
		cols = len(solid[0])
	}
	g := &Grid{rows: rows, cols: cols, tileSize: tileSize, solid: make([]bool, rows*cols)}
	for r, line := range solid {
		if len(line) != cols {
			return nil, ErrRaggedGrid
		}
		copy(g.solid[r*cols:(r+1)*cols], line)
	}
	return g, nil
}

// SolidAt 越界坐标视为空地
func (g *Grid) SolidAt(row, col int) bool {
	if row < 0 || col < 0 || row >= g.rows || col >= g.cols {
		return false
	}
	return g.solid[row*g.cols+col]
}

func (g *Grid) Dimensions() (rows, cols int) { return g.rows, g.cols }

func (g *Grid) TileSize() float64 { return g.tileSize }

// CellRect 返回格子在像素坐标系下的矩形
func (g *Grid) CellRect(row, col int) Rect {
	return Rect{
		X: float64(col) * g.tileSize,
		Y: float64(row) * g.tileSize,
		W: g.tileSize,
		H: g.tileSize,
	}
}

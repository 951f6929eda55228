// Package tilemap 负责把 Tiled（.tmx）地图转换为服务端使用的两层格子数据。
package tilemap

import (
	"errors"
	"fmt"

	"github.com/lafriks/go-tiled"

	"snowfight/game"
)

var (
	ErrMissingLayers  = errors.New("tilemap: map needs a ground and a decal layer")
	ErrLayerSize      = errors.New("tilemap: ground and decal layers differ in size")
	ErrNonSquareTiles = errors.New("tilemap: tiles must be square")
)

// Tile 单个格子的图块引用，发给客户端用于绘制
type Tile struct {
	ID  uint32 `json:"id" msgpack:"id"`
	GID uint32 `json:"gid" msgpack:"gid"`
}

// Map 已加载的地图：地面层、装饰层及由装饰层得到的实心格
type Map struct {
	Ground [][]Tile   `json:"ground" msgpack:"ground"`
	Decal  [][]*Tile  `json:"decal" msgpack:"decal"` // nil 表示空格
	Grid   *game.Grid `json:"-" msgpack:"-"`
}

// FromLayers 由两层格子构造地图；装饰层中非空的格子即为实心
func FromLayers(ground [][]Tile, decal [][]*Tile, tileSize float64) (*Map, error) {
	if len(ground) != len(decal) {
		return nil, ErrLayerSize
	}
	solid := make([][]bool, len(decal))
	for r := range decal {
		if len(decal[r]) != len(ground[r]) {
			return nil, ErrLayerSize
		}
		solid[r] = make([]bool, len(decal[r]))
		for c, t := range decal[r] {
			solid[r][c] = t != nil
		}
	}
	grid, err := game.NewGrid(solid, tileSize)
	if err != nil {
		return nil, fmt.Errorf("tilemap: build grid: %w", err)
	}
	return &Map{Ground: ground, Decal: decal, Grid: grid}, nil
}

// Load 读取 .tmx 文件：第 0 层为地面，第 1 层为装饰
func Load(path string) (*Map, error) {
	tm, err := tiled.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tilemap: load %s: %w", path, err)
	}
	return fromTiled(tm)
}

func fromTiled(tm *tiled.Map) (*Map, error) {
	if len(tm.Layers) < 2 {
		return nil, ErrMissingLayers
	}
	if tm.TileWidth != tm.TileHeight || tm.TileWidth <= 0 {
		return nil, ErrNonSquareTiles
	}
	groundLayer, decalLayer := tm.Layers[0], tm.Layers[1]
	want := tm.Width * tm.Height
	if len(groundLayer.Tiles) != want || len(decalLayer.Tiles) != want {
		return nil, ErrLayerSize
	}

	ground := make([][]Tile, tm.Height)
	decal := make([][]*Tile, tm.Height)
	for row := 0; row < tm.Height; row++ {
		ground[row] = make([]Tile, tm.Width)
		decal[row] = make([]*Tile, tm.Width)
		for col := 0; col < tm.Width; col++ {
			i := row*tm.Width + col
			if t := toTile(groundLayer.Tiles[i]); t != nil {
				ground[row][col] = *t
			}
			decal[row][col] = toTile(decalLayer.Tiles[i])
		}
	}
	return FromLayers(ground, decal, float64(tm.TileWidth))
}

func toTile(lt *tiled.LayerTile) *Tile {
	if lt == nil || lt.IsNil() {
		return nil
	}
	t := &Tile{ID: lt.ID}
	if lt.Tileset != nil {
		t.GID = lt.Tileset.FirstGID + lt.ID
	}
	return t
}

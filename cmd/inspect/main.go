// Command inspect generates a single chunk for a given seed and
// coordinate and prints an ASCII map of the result. It is a debugging
// aid; nothing it prints is consumed by other tools.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/gridworks/citygen/internal/building"
	"github.com/gridworks/citygen/internal/chunk"
	"github.com/gridworks/citygen/internal/config"
	"github.com/gridworks/citygen/internal/decor"
	"github.com/gridworks/citygen/internal/grid"
	"github.com/gridworks/citygen/internal/roadnet"
)

func main() {
	var (
		seed       = flag.Int64("seed", 42, "world seed")
		chunkX     = flag.Int64("x", 0, "chunk x coordinate")
		chunkZ     = flag.Int64("z", 0, "chunk z coordinate")
		tuningPath = flag.String("tuning", "./world.yaml", "world tuning file")
		snapshot   = flag.String("snapshot", "", "write a compressed snapshot to this path")
	)
	flag.Parse()

	log.SetPrefix("[citygen] ")

	tuning, err := config.LoadTuning(*tuningPath)
	if err != nil {
		log.Fatal("Failed to load world tuning", "error", err)
	}

	cfg := chunk.ConfigFromTuning(*seed, tuning)
	c, err := chunk.Generate(cfg, defaultCatalogs(), chunk.Coord{X: *chunkX, Z: *chunkZ})
	if err != nil {
		log.Fatal("Failed to generate chunk", "error", err)
	}

	fmt.Printf("chunk (%d,%d) seed=%d instance=%s\n", c.Coord.X, c.Coord.Z, c.Seed, c.InstanceID)
	fmt.Printf("tiles=%d buildings=%d decorations=%d parks=%d fallback=%v duration=%s\n\n",
		len(c.Roads.SortedTiles()), len(c.Buildings), len(c.Decorations), len(c.Parks),
		c.Fallback, c.Duration)

	printMap(c)
	printTiles(c.Roads)

	if *snapshot != "" {
		f, err := os.Create(*snapshot)
		if err != nil {
			log.Fatal("Failed to create snapshot file", "error", err)
		}
		defer f.Close()
		if err := chunk.WriteSnapshot(f, c); err != nil {
			log.Fatal("Failed to write snapshot", "error", err)
		}
		fmt.Printf("\nsnapshot written to %s\n", *snapshot)
	}
}

// printMap renders one glyph per macro cell, row by row.
func printMap(c *chunk.Chunk) {
	size := c.Grid.Size()
	rows := make([][]byte, size)
	for z := 0; z < size; z++ {
		rows[z] = []byte(strings.Repeat(".", size))
	}
	c.Grid.EachCell(func(cell *grid.MacroCell) {
		var glyph byte
		switch cell.Type {
		case grid.CellRoad:
			glyph = '#'
		case grid.CellBuilding:
			glyph = 'B'
		case grid.CellPark:
			glyph = 'p'
		default:
			if cell.Reserved {
				glyph = '+'
			} else {
				glyph = '.'
			}
		}
		rows[cell.LocalZ][cell.LocalX] = glyph
	})

	fmt.Println("  # road   B building   p park   + reserved buffer")
	for _, row := range rows {
		fmt.Println("  " + string(row))
	}
}

// printTiles lists every resolved tile with its rotation.
func printTiles(net *roadnet.Network) {
	fmt.Println()
	for _, t := range net.SortedTiles() {
		fmt.Printf("  (%2d,%2d) %-10s rot=%d\n", t.Pos.X, t.Pos.Z, t.Kind, t.Rotation)
	}
}

// defaultCatalogs mirrors the seeded database rows so the inspector
// works without a database.
func defaultCatalogs() chunk.Catalogs {
	return chunk.Catalogs{
		Archetypes: []building.Archetype{
			{Category: "tower", FootprintWidth: 2, FootprintDepth: 2, SpawnProbability: 0.10, Variants: []string{"tower_a", "tower_b"}},
			{Category: "office", FootprintWidth: 2, FootprintDepth: 1, SpawnProbability: 0.15, Variants: []string{"office_a"}},
			{Category: "shop", FootprintWidth: 1, FootprintDepth: 1, SpawnProbability: 0.30, Variants: []string{"shop_a", "shop_b"}},
			{Category: "house", FootprintWidth: 1, FootprintDepth: 1, SpawnProbability: 0.45, Variants: []string{"house_a", "house_b", "house_c"}},
		},
		Vegetation: []decor.Template{
			{Kind: "vegetation", Name: "oak", Weight: 3},
			{Kind: "vegetation", Name: "birch", Weight: 2},
			{Kind: "vegetation", Name: "bush", Weight: 4},
			{Kind: "vegetation", Name: "planter", Weight: 1},
		},
		Props: []decor.Template{
			{Kind: "prop", Name: "bench", Weight: 2},
			{Kind: "prop", Name: "lamp_post", Weight: 3},
			{Kind: "prop", Name: "hydrant", Weight: 1},
		},
	}
}

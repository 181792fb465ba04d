// 命令行查询工具：方格引用解析、单点高度与最近山顶
//
//	terrain-query gridref NN1671
//	terrain-query height [-spline] NN166712 | <x> <y>
//	terrain-query nearest NN166712 | <x> <y>
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"terrain-api/internal/bng"
	"terrain-api/internal/game"
	"terrain-api/internal/hills"
	"terrain-api/internal/logger"
	"terrain-api/internal/terrain"
	"terrain-api/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger.Setup()
	defer logger.Close()
	if len(args) < 1 {
		return usage()
	}
	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "gridref":
		err = gridref(rest)
	case "height":
		err = height(rest)
	case "nearest":
		err = nearest(rest)
	default:
		return usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "terrain-query:", err)
		return 1
	}
	return 0
}

func usage() int {
	fmt.Fprintln(os.Stderr, "usage: terrain-query gridref <ref> | height [-spline] <ref|x y> | nearest <ref|x y>")
	return 2
}

// point：一个参数按方格引用解析，两个参数按网格米解析
func point(args []string) (float64, float64, error) {
	switch len(args) {
	case 1:
		c, err := bng.ParseGridRef(args[0])
		if err != nil {
			return 0, 0, err
		}
		return float64(c.X()), float64(c.Y()), nil
	case 2:
		x, err1 := strconv.ParseFloat(args[0], 64)
		y, err2 := strconv.ParseFloat(args[1], 64)
		if err := errors.Join(err1, err2); err != nil {
			return 0, 0, err
		}
		return x, y, nil
	}
	return 0, 0, errors.New("expected a grid reference or x y")
}

func gridref(args []string) error {
	if len(args) != 1 {
		return errors.New("gridref takes one reference")
	}
	c, size, err := bng.ParseGridRefWithSize(args[0])
	if err != nil {
		return err
	}
	lat, lon := c.LatLon()
	fmt.Printf("%s  x=%d y=%d size=%gm\n", c.Square(5), c.X(), c.Y(), size)
	fmt.Printf("lat=%.6f lon=%.6f\n", lat, lon)
	fmt.Println(c.Geograph())
	fmt.Println(c.OSMaps())
	return nil
}

func height(args []string) error {
	fs := flag.NewFlagSet("height", flag.ContinueOnError)
	useSpline := fs.Bool("spline", false, "use cubic spline interpolation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	x, y, err := point(fs.Args())
	if err != nil {
		return err
	}
	s, err := terrain.Open(terrain.OptionsFromEnv())
	if err != nil {
		return err
	}
	z := s.HeightAt(x, y)
	method := "linear"
	if *useSpline {
		sp, err := s.Spline(true)
		if err != nil {
			return err
		}
		z, method = sp.At(x, y), "spline"
	}
	fmt.Printf("%s  %.2fm (%s)\n", bng.FromGrid(int(x), int(y)).Square(5), z, method)
	return nil
}

func nearest(args []string) error {
	x, y, err := point(args)
	if err != nil {
		return err
	}
	ix, err := hills.LoadZip(utils.Env("HILLS_ZIP", filepath.Join("data", "hills", "hills.zip")))
	if err != nil {
		return err
	}
	h, d, err := ix.Nearest(bng.FromGrid(int(x), int(y)))
	if err != nil {
		return err
	}
	fmt.Printf("%s, %s highest, %s away at %s\n", h, h.Ranked(), game.FormatDistance(d), h.Coords().Square(4))
	return nil
}

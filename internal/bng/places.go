package bng

import (
	"math/rand"
	"sort"
)

// Ben：本·尼维斯山（英国最高点）
func Ben() Coords { return FromGrid(216666, 771288) }

// Fen：霍姆芬（英国最低点）
func Fen() Coords { return FromGrid(520483, 289083) }

var pubs = map[string][2]int{
	"Bear":          {451473, 206135},
	"Canal house":   {457307, 339326},
	"MacSorleys":    {258809, 665079},
	"Sheffield tap": {435847, 387030},
}

// Pub：按名称返回酒馆坐标；name 为空时随机选择
func Pub(name string) (Coords, bool) {
	if name == "" {
		names := PubNames()
		p := pubs[names[rand.Intn(len(names))]]
		return FromGrid(p[0], p[1]), true
	}
	p, ok := pubs[name]
	if !ok {
		return Coords{}, false
	}
	return FromGrid(p[0], p[1]), true
}

func PubNames() []string {
	out := make([]string, 0, len(pubs))
	for k := range pubs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

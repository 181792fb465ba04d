package api

import (
	"terrain-api/internal/bng"
	"terrain-api/internal/game"
	"terrain-api/internal/geoip"
	"terrain-api/internal/hills"
)

// 对外返回结构：仅包含必要字段

type heightResult struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Height float64 `json:"height"`
	Method string  `json:"method"`
	Square string  `json:"square"`
	// 仅 method=linear 且 gradient=1 时返回
	Gradient *[2]float64 `json:"gradient,omitempty"`
}

type hillView struct {
	Name   string  `json:"name"`
	ID     int     `json:"id"`
	Rank   int     `json:"rank"`
	Ranked string  `json:"ranked"`
	Meters float64 `json:"meters"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Square string  `json:"square"`
	Summit string  `json:"summit_url"`
	// 仅 photo=1 时探测
	Photo  string  `json:"photo_url,omitempty"`
}

func viewHill(h hills.Hill) hillView {
	return hillView{
		Name:   h.Name,
		ID:     h.ID,
		Rank:   h.Rank,
		Ranked: h.Ranked(),
		Meters: h.Meters,
		X:      h.X,
		Y:      h.Y,
		Square: h.Coords().Square(5),
		Summit: h.SummitURL(),
	}
}

type nearestResult struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Hill     hillView `json:"hill"`
	Distance float64  `json:"distance_m"`
}

type gridrefResult struct {
	Ref        string     `json:"ref"`
	X          int        `json:"x"`
	Y          int        `json:"y"`
	Size       float64    `json:"size_m"`
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	Normalised [2]float64 `json:"normalised"`
	Links      links      `json:"links"`
}

type links struct {
	Geograph    string `json:"geograph"`
	Google      string `json:"google"`
	OSMaps      string `json:"osmaps"`
	OpenTopoMap string `json:"opentopomap"`
}

func linksOf(c bng.Coords) links {
	return links{Geograph: c.Geograph(), Google: c.Google(), OSMaps: c.OSMaps(), OpenTopoMap: c.OpenTopoMap()}
}

type dimensionsResult struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Spacing int `json:"spacing"`
}

type loginRequest struct {
	User  string `json:"user"`
	Token string `json:"token"`
}

type loginResult struct {
	Session    string          `json:"session"`
	Boundaries game.Boundaries `json:"boundaries"`
}

type pointRequest struct {
	Session string   `json:"session"`
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
}

type whereamiResult struct {
	Place   geoip.Place    `json:"place"`
	Square  string         `json:"square"`
	Height  *float64       `json:"height,omitempty"`
	Nearest *nearestResult `json:"nearest,omitempty"`
}

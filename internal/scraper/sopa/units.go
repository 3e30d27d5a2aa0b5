package sopa

// KnownUnits lists SOPA units per state for when the state index cannot be read
var KnownUnits = map[string][]Unit{
	"CO": {
		{ID: "110202", Name: "Arapaho and Roosevelt NFs & Pawnee NG"},
		{ID: "110204", Name: "Grand Mesa, Uncompahgre and Gunnison NFs"},
		{ID: "110206", Name: "Medicine Bow-Routt NFs"},
		{ID: "110208", Name: "Pike and San Isabel NFs & Comanche and Cimarron NGs"},
		{ID: "110209", Name: "Rio Grande NF"},
		{ID: "110210", Name: "San Juan NF"},
		{ID: "110212", Name: "White River NF"},
		{ID: "110701", Name: "Cimarron National Grassland"},
		{ID: "110504", Name: "Manti-La Sal NF"},
		{ID: "110802", Name: "Comanche National Grassland"},
		{ID: "110902", Name: "Pawnee National Grassland"},
	},
}

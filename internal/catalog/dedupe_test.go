package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTitle(t *testing.T) {
	cases := []struct {
		title string
		name  string
		size  string
	}{
		{"Tito's Handmade Vodka 750ml", "Tito's Handmade Vodka", "750ml"},
		{"Tito's Handmade Vodka - 750 mL", "Tito's Handmade Vodka", "750ml"},
		{"Tito's  Handmade Vodka (1.75 Liters)", "Tito's Handmade Vodka", "1.75l"},
		{"Modelo Especial 12 Pack", "Modelo Especial", "12pk"},
		{"Topo Chico 12 fl oz", "Topo Chico", "12oz"},
		{"Balloon Arch Kit", "Balloon Arch Kit", ""},
		{"750ml", "750ml", ""},
	}
	for _, tc := range cases {
		got := ParseTitle(tc.title)
		require.Equal(t, tc.name, got.Name, tc.title)
		require.Equal(t, tc.size, got.Size, tc.title)
	}
}

func TestDedupePrefersInStockThenCheapest(t *testing.T) {
	out := Dedupe([]Product{
		{ID: "a", Title: "Party Cups 50ct", Price: 500, InStock: false},
		{ID: "b", Title: "party cups - 50 count", Price: 700, InStock: true},
		{ID: "c", Title: "Party Cups 50 CT", Price: 650, InStock: true},
		{ID: "d", Title: "Party Cups 100ct", Price: 900, InStock: true},
	})
	require.Len(t, out, 2)
	require.Equal(t, "c", out[0].ID)
	require.Equal(t, 3, out[0].Listings)
	require.Equal(t, "Party Cups", out[0].Name, "name comes from the first row seen")
	require.Equal(t, "d", out[1].ID)
}

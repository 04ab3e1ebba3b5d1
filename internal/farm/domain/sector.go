package farm

import "fmt"

// Sector is a fixed grid cell grouping panels. Aggregates are never stored here;
// they are recomputed from the live panel set on every read.
type Sector struct {
	ID        string  `json:"sector_id"`
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`
}

// SectorCode builds the sector code for a 0-based row and column, e.g. (0,0) -> "A1".
func SectorCode(row, col int) string {
	return fmt.Sprintf("%c%d", rune('A'+row), col+1)
}

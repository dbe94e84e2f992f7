package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// RackCell is one occupied cell of a rack grid.
type RackCell struct {
	ShellID     int    `json:"shellId"`
	ShellNumber int    `json:"shellNumber"`
	FuseID      string `json:"fuseId,omitempty"`
}

// RackFuse is a fuse run across rack cells. Type is the inventory id of the fuse item.
type RackFuse struct {
	Type   int      `json:"type"`
	LeadIn float64  `json:"leadIn"`
	Cells  []string `json:"cells"`
}

// Rack is a 2D grid of cells belonging to one show. Spacing is in inches.
type Rack struct {
	ID       int
	ShowID   int
	Name     string
	XRows    int
	XSpacing float64
	YRows    int
	YSpacing float64
	Cells    map[string]RackCell
	Fuses    map[string]RackFuse
}

// NewRack creates an empty rack.
func NewRack(showID int, name string, xRows int, xSpacing float64, yRows int, ySpacing float64) *Rack {
	return &Rack{
		ShowID:   showID,
		Name:     name,
		XRows:    xRows,
		XSpacing: xSpacing,
		YRows:    yRows,
		YSpacing: ySpacing,
		Cells:    map[string]RackCell{},
		Fuses:    map[string]RackFuse{},
	}
}

// CellKey returns the "x_y" key of a cell.
func CellKey(x, y int) string {
	return fmt.Sprintf("%d_%d", x, y)
}

// SetCell places a shell at (x, y). Out of bounds coordinates are rejected.
func (r *Rack) SetCell(x, y int, shellID, shellNumber int) error {
	if x < 0 || x >= r.XRows || y < 0 || y >= r.YRows {
		return invalid("cell", fmt.Sprintf("%s is outside the %dx%d rack", CellKey(x, y), r.XRows, r.YRows))
	}
	if r.Cells == nil {
		r.Cells = map[string]RackCell{}
	}
	key := CellKey(x, y)
	cell := r.Cells[key]
	cell.ShellID = shellID
	cell.ShellNumber = shellNumber
	r.Cells[key] = cell
	return nil
}

// AddFuse runs a new fuse of inventory type fuseType through cells, in fire order.
// Every cell must exist and must not already belong to another fuse.
func (r *Rack) AddFuse(fuseType int, leadIn float64, cells []string) (string, error) {
	if fuseType == 0 {
		return "", invalid("fuse", "fuse type not selected")
	}
	if len(cells) == 0 {
		return "", invalid("cells", "a fuse needs at least one cell")
	}
	seen := map[string]bool{}
	for _, key := range cells {
		cell, ok := r.Cells[key]
		if !ok {
			return "", invalid("cells", fmt.Sprintf("cell %s is empty", key))
		}
		if cell.FuseID != "" {
			return "", invalid("cells", fmt.Sprintf("cell %s already belongs to fuse %s", key, cell.FuseID))
		}
		if seen[key] {
			return "", invalid("cells", fmt.Sprintf("cell %s listed twice", key))
		}
		seen[key] = true
	}

	if r.Fuses == nil {
		r.Fuses = map[string]RackFuse{}
	}
	id := uuid.NewString()
	r.Fuses[id] = RackFuse{Type: fuseType, LeadIn: leadIn, Cells: append([]string(nil), cells...)}
	for _, key := range cells {
		cell := r.Cells[key]
		cell.FuseID = id
		r.Cells[key] = cell
	}
	return id, nil
}

// RemoveFuse detaches a fuse and frees its cells.
func (r *Rack) RemoveFuse(id string) {
	fuse, ok := r.Fuses[id]
	if !ok {
		return
	}
	for _, key := range fuse.Cells {
		if cell, ok := r.Cells[key]; ok && cell.FuseID == id {
			cell.FuseID = ""
			r.Cells[key] = cell
		}
	}
	delete(r.Fuses, id)
}

// Validate checks that every fuse cell exists and that no cell is on two fuses.
func (r *Rack) Validate() error {
	owner := map[string]string{}
	for id, fuse := range r.Fuses {
		for _, key := range fuse.Cells {
			if _, ok := r.Cells[key]; !ok {
				return invalid("fuses", fmt.Sprintf("fuse %s references missing cell %s", id, key))
			}
			if prev, ok := owner[key]; ok && prev != id {
				return invalid("fuses", fmt.Sprintf("cell %s is on fuses %s and %s", key, prev, id))
			}
			owner[key] = id
		}
	}
	return nil
}

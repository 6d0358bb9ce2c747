package analysis

import (
	"strconv"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/model"
)

// Phase matrix cell values.
const (
	CellNone           = 0
	CellConnected      = 1
	CellStrengthMasked = 2
	CellPhaseMasked    = 3
)

// Matrix is a dense integer matrix with row and column pin numbers.
type Matrix struct {
	Rows  []int   `json:"rows"`
	Cols  []int   `json:"cols"`
	Cells [][]int `json:"cells"`
}

func newMatrix(rows, cols []int) Matrix {
	cells := make([][]int, len(rows))
	for i := range cells {
		cells[i] = make([]int, len(cols))
	}
	return Matrix{Rows: rows, Cols: cols, Cells: cells}
}

// At returns the cell for pin numbers (row, col), or 0 if either is absent.
func (m Matrix) At(row, col int) int {
	for i, r := range m.Rows {
		if r != row {
			continue
		}
		for j, c := range m.Cols {
			if c == col {
				return m.Cells[i][j]
			}
		}
	}
	return 0
}

func pinNumbers(dev *model.Device) []int {
	nums := make([]int, len(dev.Pins))
	for i, p := range dev.Pins {
		nums[i] = p.Number
	}
	return nums
}

// MatchesDevice reports whether an external connection's device id refers to
// peer. The firmware reports peers by numeric id, so the id is compared in
// decimal form with the peer's family and its uuid. A peer whose family and
// uuid are both text (for example "NRF") can never match.
func MatchesDevice(c model.Connection, peer *model.Device) bool {
	if c.Internal() || peer == nil {
		return false
	}
	id := strconv.Itoa(c.Parameter)
	return id == peer.Family || (peer.UUID != "" && id == peer.UUID)
}

// ExternalMatrix builds the |pins(a)| x |pins(b)| matrix of external
// connections from a to b. Cell (i, j) is 1 when pin i of a reported a link
// to pin j of b.
func ExternalMatrix(a, b *model.Device) Matrix {
	m := newMatrix(pinNumbers(a), pinNumbers(b))
	idx := b.PinIndex()

	for i, p := range a.Pins {
		for _, c := range p.Connections {
			if !MatchesDevice(c, b) {
				continue
			}
			if j, ok := idx[c.OtherPin]; ok {
				m.Cells[i][j] = 1
			}
		}
	}
	return m
}

func cellFor(c model.Connection) int {
	switch {
	case c.Masked:
		return CellStrengthMasked
	case c.PhaseMasked:
		return CellPhaseMasked
	default:
		return CellConnected
	}
}

// PhaseMatrix builds the |pins| x |pins| matrix of one device at one phase.
// The diagonal is 1 for pins that followed their own excitation (no
// self-check event). Off-diagonal cells hold CellConnected, CellStrengthMasked
// or CellPhaseMasked for internal connections observed at the phase; when
// several connections share a cell the lowest non-zero value wins.
func PhaseMatrix(dev *model.Device, phase model.Phase) Matrix {
	nums := pinNumbers(dev)
	m := newMatrix(nums, nums)
	idx := dev.PinIndex()
	check, hasCheck := phase.SelfCheckEvent()

	for i := range dev.Pins {
		p := &dev.Pins[i]
		if hasCheck && !p.HasEvent(check) {
			m.Cells[i][i] = 1
		}

		for _, c := range p.Connections {
			if !c.Internal() || c.Phase() != phase {
				continue
			}
			j, ok := idx[c.OtherPin]
			if !ok || j == i {
				continue
			}
			v := cellFor(c)
			if cur := m.Cells[i][j]; cur == CellNone || v < cur {
				m.Cells[i][j] = v
			}
		}
	}
	return m
}

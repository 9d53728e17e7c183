package governor

import (
	"sort"
	"time"
)

// Mode is the cognitive mode of a schedule block.
type Mode string

const (
	ModeCreative Mode = "creative"
	ModeAdmin    Mode = "admin"
	ModeGeneral  Mode = "general"
)

// Block is one slot of a candidate schedule.
type Block struct {
	ID       string        `json:"id"`
	Mode     Mode          `json:"mode"`
	Tasks    int           `json:"tasks"`
	Duration time.Duration `json:"duration"`
}

type modePair struct{ a, b Mode }

func pair(a, b Mode) modePair {
	if b < a {
		a, b = b, a
	}
	return modePair{a, b}
}

// FlowModel scores block sequences. Lower cost means fewer context switches.
type FlowModel struct {
	switchPenalty map[modePair]float64
	// UnknownSwitchPenalty applies to a switch between two distinct modes with no table entry.
	UnknownSwitchPenalty float64
	// FragmentationPenalty is added for every block holding more than
	// MaxTasksPerBlock tasks in less than MinBlockDuration.
	FragmentationPenalty float64
	MaxTasksPerBlock     int
	MinBlockDuration     time.Duration
}

// NewFlowModel returns the default switch table: creative/admin 1.0,
// creative/general 0.5, admin/general 0.3.
func NewFlowModel() *FlowModel {
	m := &FlowModel{
		switchPenalty:        make(map[modePair]float64),
		UnknownSwitchPenalty: 0.5,
		FragmentationPenalty: 0.5,
		MaxTasksPerBlock:     3,
		MinBlockDuration:     30 * time.Minute,
	}
	m.SetSwitchPenalty(ModeCreative, ModeAdmin, 1.0)
	m.SetSwitchPenalty(ModeCreative, ModeGeneral, 0.5)
	m.SetSwitchPenalty(ModeAdmin, ModeGeneral, 0.3)
	return m
}

// SetSwitchPenalty sets the symmetric cost of moving between two modes.
func (m *FlowModel) SetSwitchPenalty(a, b Mode, cost float64) {
	m.switchPenalty[pair(a, b)] = cost
}

// SwitchPenalty returns the cost of moving from a to b.
func (m *FlowModel) SwitchPenalty(a, b Mode) float64 {
	if a == b {
		return 0
	}
	if cost, ok := m.switchPenalty[pair(a, b)]; ok {
		return cost
	}
	return m.UnknownSwitchPenalty
}

// Cost sums switch penalties between consecutive blocks plus fragmentation penalties.
func (m *FlowModel) Cost(blocks []Block) float64 {
	var cost float64
	for i, b := range blocks {
		if i > 0 {
			cost += m.SwitchPenalty(blocks[i-1].Mode, b.Mode)
		}
		if b.Tasks > m.MaxTasksPerBlock && b.Duration < m.MinBlockDuration {
			cost += m.FragmentationPenalty
		}
	}
	return cost
}

// Ranked is a scored candidate.
type Ranked struct {
	Index  int     `json:"index"`
	Blocks []Block `json:"blocks"`
	Cost   float64 `json:"cost"`
}

// Rank orders candidates by ascending cost. Equal costs keep input order.
func (m *FlowModel) Rank(candidates [][]Block) []Ranked {
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{Index: i, Blocks: c, Cost: m.Cost(c)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out
}

// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package engine

import "time"

// staging is the output of the staging decider: how many towers to
// run, at what demand, and in which order to consider them.
type staging struct {
	Demanded  int
	DemandPct float64
	DeltaT    float64

	// Candidate towers, lead first. Currently-running towers are
	// moved ahead so rising demand never swaps a warm tower for a
	// cold start.
	Order [NumTowers]int
}

// rotateLead advances the lead tower on the weekly boundary, scanning
// for the next available tower. The rotation clock resets only when a
// rotation actually happened.
func (e *Engine) rotateLead(now time.Time, st *State) {
	if now.Sub(st.LeadRotationStart) < RotationPeriod {
		return
	}
	next := st.LeadTower
	for i := 0; i < NumTowers; i++ {
		next = next%NumTowers + 1
		if e.cfg.TowerAvailable[next-1] {
			e.log.Info("lead rotation: tower %d -> %d", st.LeadTower, next)
			st.LeadTower = next
			st.LeadRotationStart = now
			return
		}
	}
}

// stage evaluates the demand table. ΔT is heat-pump supply minus
// setpoint; positive means cooling is needed.
func (e *Engine) stage(sens Sensors, st *State) staging {
	dT := sens.HPSupply - sens.Setpoint

	running := 0
	for i := range st.Towers {
		if st.Towers[i].Timer.Mode == ModeRunning {
			running++
		}
	}

	stg := staging{DeltaT: dT, Order: e.towerOrder(st)}

	// hard cold-shutdown conditions override everything
	if dT < shutdownDelta || sens.HPSupply < hpSupplyMinF || sens.TowerSupply < twrSupplyMinF {
		return stg
	}

	demanded, pct := stageTable(dT)

	// already-running bias: keep what is running while ΔT has not
	// collapsed, so the plant does not cycle near the thresholds
	if running > 0 && dT >= continueDeltaF {
		if demanded < running {
			demanded = running
		}
		if demanded < 1 {
			demanded = 1
		}
		pct = clamp(28+3*dT, 28, 100)
	}

	stg.Demanded = demanded
	stg.DemandPct = pct
	return stg
}

func stageTable(dT float64) (int, float64) {
	switch {
	case dT >= stageDelta4:
		return 3, 100
	case dT >= stageDelta3:
		return 3, 75
	case dT >= stageDelta2:
		return 2, 60
	case dT >= stageDelta1:
		return 1, clamp(28+2*(dT-stageDelta1), 28, 50)
	default:
		return 0, 0
	}
}

// towerOrder lists towers lead-first (lead, lag1, lag2), with
// currently-running towers promoted to the front of that sequence.
func (e *Engine) towerOrder(st *State) [NumTowers]int {
	lead := st.LeadTower
	seq := [NumTowers]int{lead, lead%NumTowers + 1, (lead+1)%NumTowers + 1}

	var order [NumTowers]int
	n := 0
	for _, i := range seq {
		if st.Towers[i-1].Timer.Mode == ModeRunning {
			order[n] = i
			n++
		}
	}
	for _, i := range seq {
		if st.Towers[i-1].Timer.Mode != ModeRunning {
			order[n] = i
			n++
		}
	}
	return order
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

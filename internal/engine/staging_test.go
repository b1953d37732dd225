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

import (
	"testing"
	"time"
)

func TestStageTable(t *testing.T) {
	cases := []struct {
		dT       float64
		demanded int
		pct      float64
	}{
		{-20, 0, 0},
		{0, 0, 0},
		{9.9, 0, 0},
		{10, 1, 28},
		{15, 1, 38},
		{25, 2, 60}, // inside the stage-2 band, not the stage-1 ramp
		{19.9, 1, 47.8},
		{20, 2, 60},
		{29.9, 2, 60},
		{30, 3, 75},
		{34.9, 3, 75},
		{35, 3, 100},
		{50, 3, 100},
	}
	for _, c := range cases {
		d, p := stageTable(c.dT)
		if d != c.demanded {
			t.Errorf("dT=%v: expected %d towers, got %d", c.dT, c.demanded, d)
		}
		if diff := p - c.pct; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("dT=%v: expected %.1f%%, got %v", c.dT, c.pct, p)
		}
	}
}

func TestStageHardShutdownWins(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	st.Towers[0].Timer = TowerTimer{Mode: ModeRunning, Since: t0.Add(-time.Hour)}

	cases := []struct {
		name string
		sens Sensors
	}{
		{"delta below -15", Sensors{HPSupply: 70, Setpoint: 90, TowerSupply: 75}},
		{"hp supply below 65", Sensors{HPSupply: 60, Setpoint: 75, TowerSupply: 75}},
		{"tower supply below 50", Sensors{HPSupply: 95, Setpoint: 75, TowerSupply: 45}},
	}
	for _, c := range cases {
		stg := e.stage(c.sens, st)
		if stg.Demanded != 0 || stg.DemandPct != 0 {
			t.Errorf("%s: expected zero demand, got %+v", c.name, stg)
		}
	}
}

func TestStageContinuationBias(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	st.Towers[1].Timer = TowerTimer{Mode: ModeRunning, Since: t0.Add(-time.Hour)}
	st.Towers[2].Timer = TowerTimer{Mode: ModeRunning, Since: t0.Add(-time.Hour)}

	// dT=2 stages zero towers, but two are already running
	stg := e.stage(Sensors{HPSupply: 77, Setpoint: 75, TowerSupply: 75}, st)
	if stg.Demanded != 2 {
		t.Errorf("expected running count preserved, got %d", stg.Demanded)
	}
	if stg.DemandPct != 34 {
		t.Errorf("expected 34%% demand, got %v", stg.DemandPct)
	}

	// demand never drops below the stage table while running
	stg = e.stage(Sensors{HPSupply: 106, Setpoint: 75, TowerSupply: 75}, st)
	if stg.Demanded != 3 {
		t.Errorf("expected stage demand 3 to win over running count, got %d", stg.Demanded)
	}

	// collapsed dT releases the bias
	stg = e.stage(Sensors{HPSupply: 69, Setpoint: 75, TowerSupply: 75}, st)
	if stg.Demanded != 0 {
		t.Errorf("expected no demand at dT=-6, got %d", stg.Demanded)
	}
}

func TestTowerOrderPrefersRunning(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	st.LeadTower = 1
	st.Towers[2].Timer = TowerTimer{Mode: ModeRunning, Since: t0}

	order := e.towerOrder(st)
	if order != [NumTowers]int{3, 1, 2} {
		t.Errorf("expected running tower 3 first, got %v", order)
	}

	st.Towers[2].Timer = TowerTimer{}
	order = e.towerOrder(st)
	if order != [NumTowers]int{1, 2, 3} {
		t.Errorf("expected lead-first order, got %v", order)
	}

	st.LeadTower = 2
	order = e.towerOrder(st)
	if order != [NumTowers]int{2, 3, 1} {
		t.Errorf("expected lag wrap from lead 2, got %v", order)
	}
}

func TestLeadRotationWeekly(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	st.LeadRotationStart = t0.Add(-RotationPeriod)

	e.rotateLead(t0, st)
	if st.LeadTower != 2 {
		t.Errorf("expected lead advanced to 2, got %d", st.LeadTower)
	}
	if !st.LeadRotationStart.Equal(t0) {
		t.Errorf("expected rotation clock reset")
	}

	// not due yet: nothing moves
	e.rotateLead(t0.Add(time.Hour), st)
	if st.LeadTower != 2 {
		t.Errorf("expected no rotation inside the week, got %d", st.LeadTower)
	}
}

func TestLeadRotationSkipsUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TowerAvailable[1] = false // tower 2 out of service
	e := New(cfg)
	st := freshState(t0)
	st.LeadRotationStart = t0.Add(-RotationPeriod)

	e.rotateLead(t0, st)
	if st.LeadTower != 3 {
		t.Errorf("expected rotation to skip tower 2, got %d", st.LeadTower)
	}
}

func TestLeadRotationNoAvailableTowers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TowerAvailable = [NumTowers]bool{false, false, false}
	e := New(cfg)
	st := freshState(t0)
	start := t0.Add(-RotationPeriod)
	st.LeadRotationStart = start

	e.rotateLead(t0, st)
	if st.LeadTower != 1 {
		t.Errorf("expected lead unchanged, got %d", st.LeadTower)
	}
	if !st.LeadRotationStart.Equal(start) {
		t.Errorf("expected rotation clock untouched when nothing rotated")
	}
}

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

func healthySensors() Sensors {
	return Sensors{
		HPSupply: 75, HPReturn: 85, TowerSupply: 75, TowerReturn: 85,
		Outdoor: 70, Setpoint: 75,
		PumpCurrent: [NumPumps]float64{20, 20, 20},
	}
}

func TestPumpNormalOperation(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)

	var snap Snapshot
	e.commandPumps(t0, healthySensors(), st, &snap)

	if snap.PumpEnable != [NumPumps]bool{true, false, false} {
		t.Errorf("expected only pump 1, got %v", snap.PumpEnable)
	}
	if st.Pump.RuntimeHours[0] <= 0 {
		t.Errorf("expected runtime accumulated on pump 1")
	}
}

func TestPumpWeeklyRotation(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	st.Pump.RotationStart = t0.Add(-RotationPeriod)

	var snap Snapshot
	e.commandPumps(t0, healthySensors(), st, &snap)

	if st.Pump.Changeover == nil || st.Pump.Changeover.NewPump != 2 {
		t.Fatalf("expected rotation changeover to pump 2, got %+v", st.Pump.Changeover)
	}
	if !st.Pump.RotationStart.Equal(t0) {
		t.Errorf("expected rotation clock reset")
	}
	if snap.PumpEnable != [NumPumps]bool{true, true, false} {
		t.Errorf("expected overlap pair, got %v", snap.PumpEnable)
	}
}

func TestPumpFailoverDebounce(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	st.Pump.LastFailover = t0.Add(-10 * time.Second) // inside the 30 s debounce

	sens := healthySensors()
	sens.PumpCurrent[0] = 2

	var snap Snapshot
	e.commandPumps(t0, sens, st, &snap)
	if st.Pump.Changeover != nil {
		t.Errorf("expected debounce to suppress failover, got %+v", st.Pump.Changeover)
	}
	if snap.PumpEnable != [NumPumps]bool{true, false, false} {
		t.Errorf("expected pump 1 still asserted, got %v", snap.PumpEnable)
	}
}

func TestPumpFailoverSkipsUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PumpAvailable[1] = false // pump 2 out of service
	e := New(cfg)
	st := freshState(t0)
	st.Pump.LastFailover = t0.Add(-time.Minute)

	sens := healthySensors()
	sens.PumpCurrent[0] = 2

	var snap Snapshot
	e.commandPumps(t0, sens, st, &snap)
	if st.Pump.Changeover == nil || st.Pump.Changeover.NewPump != 3 {
		t.Errorf("expected failover straight to pump 3, got %+v", st.Pump.Changeover)
	}
}

func TestPumpNoAlternateAvailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PumpAvailable = [NumPumps]bool{true, false, false}
	e := New(cfg)
	st := freshState(t0)
	st.Pump.LastFailover = t0.Add(-time.Minute)

	sens := healthySensors()
	sens.PumpCurrent[0] = 2

	var snap Snapshot
	e.commandPumps(t0, sens, st, &snap)

	// nowhere to go: the supervisor keeps the current pump asserted
	if st.Pump.Changeover != nil {
		t.Errorf("expected no changeover, got %+v", st.Pump.Changeover)
	}
	if snap.PumpEnable != [NumPumps]bool{true, false, false} {
		t.Errorf("expected pump 1 kept on, got %v", snap.PumpEnable)
	}
}

func TestPumpStatusBypassSuppressesFailover(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bypass.PumpStatus = true
	e := New(cfg)
	st := freshState(t0)
	st.Pump.LastFailover = t0.Add(-time.Minute)

	sens := healthySensors()
	sens.PumpCurrent[0] = 0

	var snap Snapshot
	e.commandPumps(t0, sens, st, &snap)
	if st.Pump.Changeover != nil {
		t.Errorf("expected bypass to suppress failover, got %+v", st.Pump.Changeover)
	}
}

func TestPumpRuntimeAccounting(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)

	var snap Snapshot
	for i := 0; i < 100; i++ {
		snap = Snapshot{}
		e.commandPumps(t0.Add(time.Duration(i)*7*time.Second), healthySensors(), st, &snap)
	}
	want := 100 * 7.0 / 3600
	if diff := st.Pump.RuntimeHours[0] - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected %.4f hours on pump 1, got %v", want, st.Pump.RuntimeHours[0])
	}
	if st.Pump.RuntimeHours[1] != 0 {
		t.Errorf("expected no runtime on pump 2, got %v", st.Pump.RuntimeHours[1])
	}
}

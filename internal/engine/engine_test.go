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
	"reflect"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return New(DefaultConfig())
}

// baseRaw is a healthy snapshot: all loop temps mild, pumps drawing
// normal current, no vibration. Legacy channel mapping: CH1 tower
// supply, CH2 tower return, CH9 HP return, CH10 HP supply.
func baseRaw() map[string]string {
	return map[string]string{
		"CH1":         "75",
		"CH2":         "85",
		"CH9":         "85",
		"CH10":        "75",
		"CH8":         "20",
		"CH5":         "20",
		"CH6":         "20",
		"outdoorTemp": "80",
		"userSetpoint": "75",
	}
}

// freshState is an initialized state with no timers pending, as if the
// plant just booted with pump 1 healthy.
func freshState(now time.Time) *State {
	st := &State{}
	st.Init(now)
	st.Pump.LastFailover = now
	return st
}

func TestWarmStartupDemand(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)

	raw := baseRaw()
	raw["CH10"] = "90" // dT = 15

	snap := e.Step(t0, raw, UICommands{}, st)

	if snap.ActiveTowers != 1 {
		t.Fatalf("expected 1 active tower, got %d", snap.ActiveTowers)
	}
	tw := snap.Towers[0]
	if !tw.VFDEnable {
		t.Errorf("expected lead tower enabled")
	}
	if tw.FanSpeed != VfdMin {
		t.Errorf("expected startup floor %.1fV, got %v", VfdMin, tw.FanSpeed)
	}
	if tw.IsolationValve != ValveOpen {
		t.Errorf("expected isolation valve open, got %v", tw.IsolationValve)
	}
	if st.Towers[0].Timer.Mode != ModeRunning || !st.Towers[0].Timer.Since.Equal(t0) {
		t.Errorf("expected running timer at t0, got %+v", st.Towers[0].Timer)
	}
	if snap.BypassValvePosition != ValveMin || snap.TemperingValvePosition != ValveMin {
		t.Errorf("expected both valves at %.1fV, got %v / %v",
			ValveMin, snap.BypassValvePosition, snap.TemperingValvePosition)
	}
	if snap.AlarmStatus != AlarmNormal {
		t.Errorf("expected normal alarm, got %s", snap.AlarmStatus)
	}
}

func TestStageEscalation(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)

	raw := baseRaw()
	raw["CH10"] = "105" // dT = 30

	snap := e.Step(t0, raw, UICommands{}, st)

	if snap.ActiveTowers != 3 {
		t.Fatalf("expected 3 active towers, got %d", snap.ActiveTowers)
	}
	for i, tw := range snap.Towers {
		if !tw.VFDEnable {
			t.Errorf("tower %d: expected enabled", i+1)
		}
		if tw.FanSpeed != VfdMin {
			t.Errorf("tower %d: expected startup floor, got %v", i+1, tw.FanSpeed)
		}
	}
	if snap.CoolingDemand != 75 {
		t.Errorf("expected demand 75%%, got %v", snap.CoolingDemand)
	}
}

func TestMinimumRuntimeHold(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	start := t0.Add(-120 * time.Second)
	st.Towers[0].Timer = TowerTimer{Mode: ModeRunning, Since: start}
	st.Towers[0].Ramp = RampState{Current: VfdMin, Target: VfdMin, LastChange: start}

	raw := baseRaw()
	raw["CH10"] = "77" // dT = 2, no stage demand

	snap := e.Step(t0, raw, UICommands{}, st)

	tw := snap.Towers[0]
	if !tw.VFDEnable {
		t.Fatalf("expected tower held on inside minimum runtime")
	}
	if tw.FanSpeed != VfdMin {
		t.Errorf("expected %.1fV, got %v", VfdMin, tw.FanSpeed)
	}
	if tw.IsolationValve != ValveOpen {
		t.Errorf("expected valve open, got %v", tw.IsolationValve)
	}
	if st.Towers[0].Timer.Mode != ModeRunning || !st.Towers[0].Timer.Since.Equal(start) {
		t.Errorf("expected start time preserved, got %+v", st.Towers[0].Timer)
	}
}

func TestColdShutdownAfterRuntime(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	st.Towers[0].Timer = TowerTimer{Mode: ModeRunning, Since: t0.Add(-500 * time.Second)}
	st.Towers[0].Ramp = RampState{Current: VfdMin, LastChange: t0.Add(-500 * time.Second)}

	raw := baseRaw()
	raw["CH10"] = "60" // below the hard supply limit

	snap := e.Step(t0, raw, UICommands{}, st)

	tw := snap.Towers[0]
	if tw.VFDEnable || tw.FanSpeed != 0 {
		t.Errorf("expected tower disabled, got %+v", tw)
	}
	if tw.IsolationValve != ValveClose {
		t.Errorf("expected valve closing, got %v", tw.IsolationValve)
	}
	tm := st.Towers[0].Timer
	if tm.Mode != ModeOffCooldown || !tm.Since.Equal(t0) {
		t.Errorf("expected off cooldown from t0, got %+v", tm)
	}
}

func TestOffCooldownGate(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	st.Towers[0].Timer = TowerTimer{Mode: ModeOffCooldown, Since: t0.Add(-60 * time.Second)}

	raw := baseRaw()
	raw["CH10"] = "95" // dT = 20, two towers demanded

	snap := e.Step(t0, raw, UICommands{}, st)

	if snap.Towers[0].VFDEnable {
		t.Errorf("expected tower 1 blocked by cooldown")
	}
	// staging still gets its two towers from the remaining candidates
	if !snap.Towers[1].VFDEnable || !snap.Towers[2].VFDEnable {
		t.Errorf("expected towers 2 and 3 selected, got %+v", snap.Towers)
	}
	if snap.ActiveTowers != 2 {
		t.Errorf("expected 2 active towers, got %d", snap.ActiveTowers)
	}
}

func TestPumpFailoverSequence(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	st.Pump.LastFailover = t0.Add(-60 * time.Second)

	raw := baseRaw()
	raw["CH8"] = "2" // pump 1 drawing no current

	snap := e.Step(t0, raw, UICommands{}, st)
	if !snap.PumpEnable[0] || !snap.PumpEnable[1] {
		t.Fatalf("expected pumps 1 and 2 both enabled during overlap, got %v", snap.PumpEnable)
	}
	if st.Pump.Changeover == nil || st.Pump.Changeover.NewPump != 2 {
		t.Fatalf("expected changeover to pump 2, got %+v", st.Pump.Changeover)
	}
	if st.Pump.FailoverCount != 1 {
		t.Errorf("expected failover count 1, got %d", st.Pump.FailoverCount)
	}

	// still inside the 5 s overlap
	snap = e.Step(t0.Add(3*time.Second), raw, UICommands{}, st)
	if !snap.PumpEnable[0] || !snap.PumpEnable[1] {
		t.Errorf("expected both pumps enabled at +3s, got %v", snap.PumpEnable)
	}

	// overlap elapsed: pump 2 takes over alone
	snap = e.Step(t0.Add(6*time.Second), raw, UICommands{}, st)
	if snap.PumpEnable[0] || !snap.PumpEnable[1] || snap.PumpEnable[2] {
		t.Errorf("expected only pump 2 enabled at +6s, got %v", snap.PumpEnable)
	}
	if st.Pump.Active != 2 || st.Pump.Changeover != nil {
		t.Errorf("expected active pump 2 with changeover cleared, got %+v", st.Pump)
	}
}

func TestCriticalVibrationSafeShutdown(t *testing.T) {
	e := testEngine(t)
	st := freshState(t0)
	start := t0.Add(-100 * time.Second)
	st.Towers[1].Timer = TowerTimer{Mode: ModeRunning, Since: start}

	raw := baseRaw()
	raw["CH10"] = "95"
	raw["WTV801_1"] = "8.2"

	snap := e.Step(t0, raw, UICommands{}, st)

	if snap.AlarmStatus != AlarmCritical {
		t.Fatalf("expected critical alarm, got %s", snap.AlarmStatus)
	}
	want := "TOWER1_HIGH_VIBRATION_CRITICAL"
	if len(snap.FaultConditions) != 1 || snap.FaultConditions[0] != want {
		t.Errorf("expected fault %q, got %v", want, snap.FaultConditions)
	}
	for i, tw := range snap.Towers {
		if tw.VFDEnable || tw.FanSpeed != 0 {
			t.Errorf("tower %d: expected off, got %+v", i+1, tw)
		}
		if tw.IsolationValve != ValveClose {
			t.Errorf("tower %d: expected valve close, got %v", i+1, tw.IsolationValve)
		}
	}
	for i, on := range snap.PumpEnable {
		if on {
			t.Errorf("pump %d: expected off", i+1)
		}
	}
	// timers survive so the off-cooldown accounting resumes after the
	// fault clears
	if st.Towers[1].Timer.Mode != ModeRunning || !st.Towers[1].Timer.Since.Equal(start) {
		t.Errorf("expected timer preserved, got %+v", st.Towers[1].Timer)
	}
}

func TestSafetyBypassSuppressesFault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bypass.Vibration = true
	e := New(cfg)
	st := freshState(t0)

	raw := baseRaw()
	raw["WTV801_2"] = "9.9"

	snap := e.Step(t0, raw, UICommands{}, st)
	if snap.AlarmStatus != AlarmNormal {
		t.Errorf("expected bypassed vibration ignored, got alarm %s (%v)",
			snap.AlarmStatus, snap.FaultConditions)
	}
	found := false
	for _, b := range snap.SafetyBypasses {
		if b == "VIBRATION" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected VIBRATION listed in bypasses, got %v", snap.SafetyBypasses)
	}
}

func TestStepDeterministic(t *testing.T) {
	e := testEngine(t)

	raw := baseRaw()
	raw["CH10"] = "92"
	raw["WTV801_3"] = "5.0"

	stA := freshState(t0)
	stB := freshState(t0)

	var snapsA, snapsB []Snapshot
	for i := 0; i < 5; i++ {
		now := t0.Add(time.Duration(i) * 7 * time.Second)
		snapsA = append(snapsA, e.Step(now, raw, UICommands{}, stA))
		snapsB = append(snapsB, e.Step(now, raw, UICommands{}, stB))
	}

	if !reflect.DeepEqual(snapsA, snapsB) {
		t.Errorf("same inputs produced different outputs")
	}
	if !reflect.DeepEqual(stA, stB) {
		t.Errorf("same inputs produced different carried state")
	}
}

// Invariants that must hold for arbitrary inputs; driven over a grid
// of sensor conditions.
func TestOutputInvariants(t *testing.T) {
	e := testEngine(t)

	supplies := []string{"40", "60", "70", "77", "85", "95", "105", "111", "200", "bogus"}
	outdoors := []string{"-10", "20", "30", "38", "41", "44", "70", "100"}

	for _, hp := range supplies {
		for _, od := range outdoors {
			st := freshState(t0)
			raw := baseRaw()
			raw["CH10"] = hp
			raw["outdoorTemp"] = od

			var prev Snapshot
			for i := 0; i < 10; i++ {
				now := t0.Add(time.Duration(i) * 7 * time.Second)
				snap := e.Step(now, raw, UICommands{}, st)
				checkInvariants(t, snap, prev, i, hp, od)
				prev = snap
			}
		}
	}
}

func checkInvariants(t *testing.T, snap, prev Snapshot, tick int, hp, od string) {
	t.Helper()
	for i, tw := range snap.Towers {
		if tw.FanSpeed != 0 && (tw.FanSpeed < VfdMin || tw.FanSpeed > VfdMax) {
			t.Fatalf("hp=%s od=%s tick %d tower %d: speed %v outside {0} ∪ [%v, %v]",
				hp, od, tick, i+1, tw.FanSpeed, VfdMin, VfdMax)
		}
		if tw.IsolationValve.OpenCmd() && tw.IsolationValve.CloseCmd() {
			t.Fatalf("tower %d: open and close asserted together", i+1)
		}
	}
	pumps := 0
	for _, on := range snap.PumpEnable {
		if on {
			pumps++
		}
	}
	if snap.AlarmStatus != AlarmCritical && (pumps < 1 || pumps > 2) {
		t.Fatalf("hp=%s od=%s tick %d: %d pumps enabled", hp, od, tick, pumps)
	}
	if snap.BypassValvePosition < ValveMin || snap.BypassValvePosition > ValveMax {
		t.Fatalf("bypass valve %v out of range", snap.BypassValvePosition)
	}
	if snap.TemperingValvePosition < ValveMin || snap.TemperingValvePosition > ValveMax {
		t.Fatalf("tempering valve %v out of range", snap.TemperingValvePosition)
	}
}

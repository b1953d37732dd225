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

package telemetry

import (
	"strings"
	"testing"
	"time"

	"coolplant/internal/engine"
)

func sampleSnapshot() engine.Snapshot {
	var snap engine.Snapshot
	snap.Time = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap.AlarmStatus = engine.AlarmNormal
	snap.LeadTower = 1
	snap.ActiveTowers = 1
	snap.LoopDeltaT = 15
	snap.CoolingDemand = 38
	snap.TemperingValvePosition = 2
	snap.BypassValvePosition = 2
	snap.PumpEnable[0] = true
	snap.Towers[0] = engine.TowerCommand{
		VFDEnable:      true,
		FanSpeed:       2.6,
		IsolationValve: engine.ValveOpen,
	}
	snap.Sensors.HPSupply = 90
	snap.Sensors.Setpoint = 75
	snap.Sensors.Vibration[1] = 5.0
	return snap
}

func TestRenderLineProtocol(t *testing.T) {
	out := Render("plant1", sampleSnapshot())

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 3 tower lines and 1 plant line, got %d:\n%s", len(lines), out)
	}

	if !strings.HasPrefix(lines[0], "metrics,site=plant1,tower=1 ") {
		t.Errorf("unexpected tower line prefix: %s", lines[0])
	}
	if !strings.Contains(lines[0], "fan_speed=2.6") || !strings.Contains(lines[0], "vfd_enable=1") {
		t.Errorf("tower 1 fields missing: %s", lines[0])
	}
	if !strings.Contains(lines[0], "valve_open=1") {
		t.Errorf("expected valve_open=1: %s", lines[0])
	}

	// tower 2 is idle and vibrating in zone C
	if !strings.Contains(lines[1], "fan_speed=0,vfd_enable=0") {
		t.Errorf("tower 2 fields wrong: %s", lines[1])
	}
	if !strings.Contains(lines[1], `vibration_zone="C"`) {
		t.Errorf("expected zone C for 5.0 mm/s: %s", lines[1])
	}

	plant := lines[3]
	if !strings.HasPrefix(plant, "metrics,site=plant1 ") {
		t.Errorf("unexpected plant line prefix: %s", plant)
	}
	for _, want := range []string{"hp_supply=90", "delta_t=15", "demand=38", "pumps_on=1", `alarm="normal"`} {
		if !strings.Contains(plant, want) {
			t.Errorf("plant line missing %q: %s", want, plant)
		}
	}

	// all lines share the snapshot timestamp
	ts := "1748779200000000000"
	for i, line := range lines {
		if !strings.HasSuffix(line, " "+ts) {
			t.Errorf("line %d missing timestamp %s: %s", i, ts, line)
		}
	}
}

func TestVibrationZones(t *testing.T) {
	cases := []struct {
		v    float64
		zone string
	}{
		{0, "A"},
		{2.7, "A"},
		{2.8, "B"},
		{4.4, "B"},
		{4.5, "C"},
		{7.1, "C"},
		{7.2, "D"},
	}
	for _, c := range cases {
		if got := vibrationZone(c.v); got != c.zone {
			t.Errorf("vibrationZone(%v) = %s, want %s", c.v, got, c.zone)
		}
	}
}

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

package supervisor

import (
	"testing"
	"time"

	"coolplant/internal/config"
	"coolplant/internal/engine"
	"coolplant/internal/events"
	"coolplant/pkg/eventbus"
)

type recordingActuator struct {
	applied []engine.Snapshot
}

func (r *recordingActuator) Apply(snap engine.Snapshot) error {
	r.applied = append(r.applied, snap)
	return nil
}

func testConfig() *config.Config {
	c := &config.Config{
		Plant:    engine.DefaultConfig(),
		EventBus: eventbus.New(),
	}
	c.Supervisor.TickSeconds = 7
	return c
}

func TestTickPublishesAndActuates(t *testing.T) {
	conf := testConfig()
	defer conf.EventBus.Close()

	rec := &recordingActuator{}
	s := New(conf, nil, rec)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.state.Init(now)
	s.state.Pump.LastFailover = now
	s.channels = map[string]string{
		"CH1": "75", "CH2": "85", "CH9": "85", "CH10": "90",
		"CH8": "20", "CH5": "20", "CH6": "20",
		"outdoorTemp": "80", "userSetpoint": "75",
	}

	s.tick(now)

	if len(rec.applied) != 1 {
		t.Fatalf("expected 1 actuation, got %d", len(rec.applied))
	}
	snap := rec.applied[0]
	if snap.ActiveTowers != 1 || !snap.Towers[0].VFDEnable {
		t.Errorf("expected lead tower running, got %+v", snap.Towers)
	}

	ev, ok := conf.EventBus.GetLast(events.TopicCommands)
	if !ok {
		t.Fatal("expected snapshot published on the command topic")
	}
	published := ev.(events.CommandUpdate).Snapshot
	if published.ActiveTowers != snap.ActiveTowers {
		t.Errorf("published snapshot differs from actuated one")
	}

	got, ok := s.Latest()
	if !ok || got.ActiveTowers != snap.ActiveTowers {
		t.Errorf("Latest() did not return the published snapshot")
	}
}

func TestTickCarriesStateAcrossCycles(t *testing.T) {
	conf := testConfig()
	defer conf.EventBus.Close()

	s := New(conf, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.state.Init(now)
	s.state.Pump.LastFailover = now
	s.channels = map[string]string{
		"CH1": "75", "CH2": "85", "CH9": "85", "CH10": "90",
		"CH8": "20", "CH5": "20", "CH6": "20",
		"outdoorTemp": "80",
	}

	s.tick(now)
	if s.state.Towers[0].Timer.Mode != engine.ModeRunning {
		t.Fatalf("expected tower 1 running after first tick")
	}
	since := s.state.Towers[0].Timer.Since

	s.tick(now.Add(7 * time.Second))
	if !s.state.Towers[0].Timer.Since.Equal(since) {
		t.Errorf("expected start time carried across ticks")
	}
}

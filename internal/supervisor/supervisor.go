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

// Package supervisor runs the control loop: it materializes the raw
// sensor snapshot from the acquisition services, ticks the engine at a
// fixed period, publishes the resulting command snapshot, and drives
// the actuators. The engine is never re-entered: one tick completes
// before the next begins.
package supervisor

import (
	"context"
	"maps"
	"time"

	"coolplant/internal/config"
	"coolplant/internal/engine"
	"coolplant/internal/events"
	"coolplant/internal/statestore"
	"coolplant/pkg/logger"
)

// Actuator applies a command snapshot to hardware. Implementations
// must tolerate repeated identical snapshots.
type Actuator interface {
	Apply(engine.Snapshot) error
}

type Supervisor struct {
	conf   *config.Config
	log    *logger.Logger
	eng    *engine.Engine
	store  *statestore.Store
	period time.Duration

	actuators []Actuator

	// latest raw channels per source, merged each tick
	channels map[string]string

	// standing operator overrides
	overrides engine.UICommands

	state     engine.State
	lastAlarm engine.AlarmLevel
}

func New(conf *config.Config, store *statestore.Store, actuators ...Actuator) *Supervisor {
	s := &Supervisor{
		conf:      conf,
		log:       logger.New("Supervisor"),
		eng:       engine.New(conf.Plant),
		store:     store,
		period:    time.Duration(conf.Supervisor.TickSeconds) * time.Second,
		actuators: actuators,
		channels:  make(map[string]string),
		lastAlarm: engine.AlarmNormal,
	}
	if store != nil {
		if st, err := store.LoadState(); err != nil {
			s.log.Error("restore state: %v", err)
		} else if st != nil {
			s.state = *st
			s.log.Info("carried state restored (lead tower %d, pump %d)",
				st.LeadTower, st.Pump.Active)
		}
	}
	return s
}

// Latest returns the most recent output snapshot, for pull-based
// consumers like the telemetry reporter.
func (s *Supervisor) Latest() (engine.Snapshot, bool) {
	ev, ok := s.conf.EventBus.GetLast(events.TopicCommands)
	if !ok {
		return engine.Snapshot{}, false
	}
	return ev.(events.CommandUpdate).Snapshot, true
}

func (s *Supervisor) Run(ctx context.Context) {
	s.log.Info("Running...")
	defer s.log.Info("Stopped")

	sensorEvents, _ := s.conf.EventBus.Subscribe(ctx, events.TopicSensors, true)
	overrideEvents, _ := s.conf.EventBus.Subscribe(ctx, events.TopicOverrides, true)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case ev := <-sensorEvents:
			up := ev.(events.SensorUpdate)
			maps.Copy(s.channels, up.Channels)

		case ev := <-overrideEvents:
			s.overrides = ev.(events.OverrideUpdate).Commands
			s.log.Info("operator overrides updated")

		case now := <-ticker.C:
			s.tick(now)

		case <-ctx.Done():
			s.persist()
			return
		}
	}
}

func (s *Supervisor) tick(now time.Time) {
	raw := make(map[string]string, len(s.channels))
	maps.Copy(raw, s.channels)

	snap := s.eng.Step(now, raw, s.overrides, &s.state)

	s.conf.EventBus.Publish(events.TopicCommands, events.CommandUpdate{Snapshot: snap})

	for _, act := range s.actuators {
		if err := act.Apply(snap); err != nil {
			s.log.Error("actuator: %v", err)
		}
	}

	if snap.AlarmStatus != s.lastAlarm {
		s.log.Warn("alarm %s -> %s: %v", s.lastAlarm, snap.AlarmStatus, snap.FaultConditions)
		if s.store != nil {
			for _, cond := range snap.FaultConditions {
				if err := s.store.RecordFault(cond, string(snap.AlarmStatus), now); err != nil {
					s.log.Error("record fault: %v", err)
				}
			}
		}
		s.lastAlarm = snap.AlarmStatus
	}

	// snapshot the carried state roughly once a minute
	if s.store != nil && now.Unix()%60 < int64(s.conf.Supervisor.TickSeconds) {
		s.persist()
	}
}

func (s *Supervisor) persist() {
	if s.store == nil {
		return
	}
	if err := s.store.SaveState(&s.state); err != nil {
		s.log.Error("persist state: %v", err)
	}
}

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

package acquire

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"coolplant/internal/config"
	"coolplant/internal/events"
	"coolplant/pkg/logger"
	"coolplant/pkg/modbus"
)

// VibrationService polls the three WTV801 vibration transmitters
// through the RS-485 gateway. Register names in the yaml map follow
// the WTV801_<n> channel convention so readings pass straight into
// the snapshot.
type VibrationService struct {
	conf   *config.Config
	client *modbus.Client
	log    *logger.Logger
	poll   time.Duration
	names  []string
}

func NewVibration(conf *config.Config, client *modbus.Client) *VibrationService {
	names := make([]string, 0, 3)
	for i := 1; i <= 3; i++ {
		names = append(names, fmt.Sprintf("WTV801_%d", i))
	}
	return &VibrationService{
		conf:   conf,
		client: client,
		log:    logger.New("Vibration"),
		poll:   time.Duration(conf.Vibration.PollIntervalSeconds) * time.Second,
		names:  names,
	}
}

func (s *VibrationService) Run(ctx context.Context) {
	s.log.Info("Running...")
	defer s.log.Info("Stopped")

	s.pollOnce()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

func (s *VibrationService) pollOnce() {
	channels := make(map[string]string, len(s.names))
	for _, name := range s.names {
		v, err := s.client.ReadFloat(name)
		if err != nil {
			// leave the channel out rather than inventing a value;
			// the supervisor keeps the last reading it merged for it
			s.log.Error("read %s: %v", name, err)
			continue
		}
		channels[name] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	if len(channels) == 0 {
		return
	}
	s.conf.EventBus.Publish(events.TopicSensors, events.SensorUpdate{
		Source:   "vibration",
		Channels: channels,
		Time:     time.Now(),
	})
}

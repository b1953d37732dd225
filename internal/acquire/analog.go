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

// Package acquire holds the sensor acquisition services. Each service
// polls one hardware source and publishes its channels as strings on
// the sensor topic; the engine's sanitizer owns all validation.
package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"coolplant/internal/config"
	"coolplant/internal/events"
	"coolplant/pkg/logger"
)

// AnalogService polls the analog HAT bridge for the temperature,
// current, and setpoint channels (CH*, AI*).
type AnalogService struct {
	conf *config.Config
	log  *logger.Logger
	poll time.Duration

	mu     sync.RWMutex
	latest map[string]string
}

func NewAnalog(conf *config.Config) *AnalogService {
	return &AnalogService{
		conf: conf,
		log:  logger.New("AnalogHAT"),
		poll: time.Duration(conf.Analog.PollIntervalSeconds) * time.Second,
	}
}

func (s *AnalogService) Run(ctx context.Context) {
	s.log.Info("Running...")
	defer s.log.Info("Stopped")

	s.pollOnce(ctx)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *AnalogService) pollOnce(ctx context.Context) {
	channels, err := s.fetch(ctx)
	if err != nil {
		s.log.Error("poll: %v", err)
		return
	}

	s.mu.Lock()
	s.latest = channels
	s.mu.Unlock()

	s.conf.EventBus.Publish(events.TopicSensors, events.SensorUpdate{
		Source:   "analog",
		Channels: channels,
		Time:     time.Now(),
	})
}

// fetch reads the bridge's channel dump. The bridge replies with a
// flat JSON object of channel name to reading; values are forwarded
// as strings untouched.
func (s *AnalogService) fetch(ctx context.Context) (map[string]string, error) {
	url := fmt.Sprintf("http://%s/channels", s.conf.Analog.HTTPAddr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}

	var payload map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}

	channels := make(map[string]string, len(payload))
	for k, v := range payload {
		channels[k] = v.String()
	}
	return channels, nil
}

// ServeHTTP exposes the latest raw channel dump for diagnostics.
func (s *AnalogService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.latest)
}

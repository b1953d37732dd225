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
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"coolplant/internal/config"
	"coolplant/internal/events"
	"coolplant/pkg/logger"
)

// weatherEntry is one history point.
type weatherEntry struct {
	Time  time.Time `json:"time"`
	TempF float64   `json:"temp_f"`
}

// WeatherService polls the outdoor-conditions endpoint and feeds the
// outdoorTemp channel. Publishes are threshold-triggered so the bus
// only sees meaningful changes; the snapshot channel is refreshed on
// every poll regardless.
type WeatherService struct {
	conf      *config.Config
	log       *logger.Logger
	poll      time.Duration
	threshold float64 // °F delta that triggers save+publish

	mu        sync.RWMutex
	history   []weatherEntry
	lastSaved *weatherEntry
}

func NewWeather(conf *config.Config) *WeatherService {
	return &WeatherService{
		conf:      conf,
		log:       logger.New("Weather"),
		poll:      time.Duration(conf.Weather.PollIntervalSeconds) * time.Second,
		threshold: 0.5,
		history:   make([]weatherEntry, 0, 1024),
	}
}

func (w *WeatherService) Run(ctx context.Context) {
	w.log.Info("Running...")
	defer w.log.Info("Stopped")

	w.pollOnce(ctx)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *WeatherService) pollOnce(ctx context.Context) {
	temp, err := w.fetch(ctx)
	if err != nil {
		// let the next poll try again; the engine keeps using the
		// last published value meanwhile
		w.log.Error("poll: %v", err)
		return
	}
	now := time.Now()

	w.conf.EventBus.Publish(events.TopicSensors, events.SensorUpdate{
		Source:   "weather",
		Channels: map[string]string{"outdoorTemp": strconv.FormatFloat(temp, 'f', 1, 64)},
		Time:     now,
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	shouldSave := w.lastSaved == nil
	if !shouldSave {
		delta := temp - w.lastSaved.TempF
		if delta < 0 {
			delta = -delta
		}
		shouldSave = delta >= w.threshold
	}
	if !shouldSave {
		return
	}

	entry := weatherEntry{Time: now, TempF: temp}
	w.history = append(w.history, entry)
	w.lastSaved = &entry

	// prune history older than 24h
	cutoff := now.Add(-24 * time.Hour)
	idx := sort.Search(len(w.history), func(i int) bool {
		return !w.history[i].Time.Before(cutoff)
	})
	if idx > 0 {
		w.history = append([]weatherEntry(nil), w.history[idx:]...)
	}

	w.conf.EventBus.Publish(events.TopicWeather, events.WeatherUpdate{
		TemperatureF: temp,
		Time:         now,
	})
}

func (w *WeatherService) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.conf.Weather.URL, nil)
	if err != nil {
		return 0, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var payload struct {
		TemperatureF float64 `json:"temperature_f"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	return payload.TemperatureF, nil
}

// ServeHTTP serves the 24 h outdoor temperature history as JSON.
func (w *WeatherService) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	history := append([]weatherEntry(nil), w.history...)
	w.mu.RUnlock()

	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(history)
}

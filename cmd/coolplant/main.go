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

package main

import (
	"context"
	"os"
	"path/filepath"

	"coolplant/internal/acquire"
	"coolplant/internal/actuate"
	"coolplant/internal/config"
	"coolplant/internal/statestore"
	"coolplant/internal/supervisor"
	"coolplant/internal/telemetry"
	"coolplant/internal/ui"
	"coolplant/pkg/appctx"
	"coolplant/pkg/eventbus"
	"coolplant/pkg/logger"
	"coolplant/pkg/modbus"
	"coolplant/pkg/rootserv"
	"coolplant/pkg/service"
	"coolplant/pkg/sysmon"
)

func main() {

	rootdir := os.Getenv("PROJECT_ROOT")
	if rootdir == "" {
		rootdir = "."
	}

	logger.Init(filepath.Join(rootdir, "var/logs/coolplant.log"))
	log := logger.New("Main")

	appConf := config.LoadFile(filepath.Join(rootdir, "var/config/coolplant.json"))
	modbusConf := modbus.LoadConfig(filepath.Join(rootdir, "var/config/vibration.modbus.yml"))

	// use conf to pass eventbus to whoever needs it
	appConf.EventBus = eventbus.New()
	appConf.DataDir = filepath.Join(rootdir, "var/cache")

	ctx, ctxCancel := appctx.New()

	store, err := statestore.New(filepath.Join(rootdir, appConf.Store.Path))
	if err != nil {
		log.Fatal("open state store: %v", err)
	}
	defer store.Close()

	relays, err := actuate.NewRelays(appConf.Relays)
	if err != nil {
		log.Fatal("open relay board: %v", err)
	}
	defer relays.Close()
	analogOut := actuate.NewAnalogOutputs(appConf.Analog)

	// init services
	server := rootserv.New(":80")
	sysMonitorService := sysmon.New()
	analogService := acquire.NewAnalog(appConf)
	vibrationService := acquire.NewVibration(appConf, modbus.NewClient(context.Background(), modbusConf))
	weatherService := acquire.NewWeather(appConf)
	supervisorService := supervisor.New(appConf, store, relays, analogOut)
	uiService := ui.New(appConf, store)
	telemetryService := telemetry.New(supervisorService, appConf)

	// attach web handler enabled services
	server.Attach("/logger", "Logger", logger.WebService())
	server.Attach("/monitor", "System Monitor", sysMonitorService)
	server.Attach("/channels", "Raw Analog Channels", analogService)
	server.Attach("/weather", "Outdoor Conditions", weatherService)
	server.Attach("/plant", "Plant Control & Status", uiService)

	// start runnable services
	exitCh := service.Start(ctx, ctxCancel, []service.Runnable{
		analogService,
		vibrationService,
		weatherService,
		supervisorService,
		uiService,
		telemetryService,
		server,
	})

	// waits for all services to stop
	os.Exit(<-exitCh)
}

/*
   HyppoLink - MEGA65 hypervisor trap & SD card access
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of HyppoLink.

   HyppoLink is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   HyppoLink is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with HyppoLink. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/control"
	"github.com/xelalexv/hyppolink/pkg/daemon"
	"github.com/xelalexv/hyppolink/pkg/link"
	"github.com/xelalexv/hyppolink/pkg/sim"
)

//
const loggingHelpEpilogue = `- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

`

// DefaultSectors is the size of a simulated SD card when none is given.
const DefaultSectors = 8192

//
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve [-d|--device {device}] [-b|--baud {rate}] [-a|--address {address}]
      [--drive {dir},...] [-i|--image {file}] [--sectors {count}]`,
		"daemon & API server command",
		`Use the serve command for running the daemon and API server. The daemon either
talks to a MEGA65 via the serial device given with --device, or, when no device
is given, to a simulated MEGA65. The simulated machine serves the host folders
given with --drive as drives 0, 1, ..., and uses the file given with --image as
its SD card.`,
		"", `- When the image file does not exist, it is created with the given number of
  sectors. Without --image, the simulated SD card lives in memory only.

`+loggingHelpEpilogue+runnerHelpEpilogue, s.Run)

	s.AddSetting(&s.Device, "device", "d", "HYPPO_DEVICE", nil,
		"serial port device connected to MEGA65", false)
	s.AddSetting(&s.Baud, "baud", "b", "", uint(link.DefaultBaudRate),
		"serial port baud rate", false)
	s.AddSetting(&s.Address, "address", "a", "HYPPO_ADDRESS", nil,
		"listen address of API server, default ':8888'", false)
	addSimSettings(&s.Command, &s.Simulation)

	return s
}

//
type Serve struct {
	//
	Runner
	Simulation
	//
	Device  string
	Baud    uint
	Address string
}

//
func (s *Serve) Run() error {

	if err := s.ParseSettings(); err != nil {
		return err
	}

	var d *daemon.Daemon

	if s.Device != "" {
		d = daemon.NewDaemon(s.Device, s.Baud)

	} else {
		m, closer, err := s.newMachine()
		if err != nil {
			return err
		}
		defer closer()
		d = daemon.NewLocalDaemon(m)
	}

	wg := &sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := d.Serve()
		if err != nil && err != daemon.ErrDaemonStopped {
			log.Errorf("daemon closed with error: %v", err)
		} else {
			log.Info("daemon stopped")
		}
	}()

	api := control.NewAPIServer(s.Address, d)
	go func() {
		defer wg.Done()
		if err := api.Serve(); err != nil {
			log.Errorf("API server closed with error: %v", err)
		} else {
			log.Info("API server stopped")
		}
	}()

	return awaitShutdown(func() {
		api.Stop()
		d.Stop()
		wg.Wait()
	})
}

/*
	awaitShutdown blocks until an interrupt signal arrives, then calls stop.
	Hitting Ctrl-C three times forces an immediate exit.
*/
func awaitShutdown(stop func()) error {

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	sigCount := 0
	done := make(chan bool)

	for {

		select {

		case sig := <-sigs: // interrupt signal
			log.WithField("signal", sig).Info("signal received")
			sigCount++

			switch sigCount {

			case 1:
				go func() {
					log.Info("shutting down, hit Ctrl-C twice to force exit...")
					stop()
					log.Info("HyppoLink stopped")
					done <- true
				}()

			case 2:
				log.Warn("shutdown in progress, hit Ctrl-C again to force exit")

			default:
				log.Warn("forcing daemon to stop immediately")
				os.Exit(1)
			}

		case <-done: // shutdown sequence complete
			return nil
		}
	}
}

// Simulation holds the settings for a simulated machine.
type Simulation struct {
	Drives  []string
	Image   string
	Sectors uint32
}

//
func addSimSettings(c *Command, sm *Simulation) {
	c.AddSetting(&sm.Drives, "drive", "", "HYPPO_DRIVES", nil,
		"host folder(s) serving as drives of simulated machine", false)
	c.AddSetting(&sm.Image, "image", "i", "HYPPO_IMAGE", nil,
		"SD card image file of simulated machine", false)
	c.AddSetting(&sm.Sectors, "sectors", "", "", uint32(DefaultSectors),
		"number of sectors of simulated SD card", false)
}

/*
	newMachine creates a simulated machine according to the settings. The
	returned function releases the machine's host resources.
*/
func (sm *Simulation) newMachine() (*sim.Machine, func(), error) {

	if sm.Sectors == 0 {
		return nil, nil, fmt.Errorf("SD card needs at least one sector")
	}

	for _, d := range sm.Drives {
		if fi, err := os.Stat(d); err != nil {
			return nil, nil, fmt.Errorf("invalid drive folder: %v", err)
		} else if !fi.IsDir() {
			return nil, nil, fmt.Errorf("drive %s is not a folder", d)
		}
	}

	var img sim.Image
	var file *sim.FileImage

	if sm.Image != "" {
		var err error
		if file, err = sim.OpenImage(sm.Image, sm.Sectors); err != nil {
			return nil, nil, err
		}
		img = file
	} else {
		img = sim.NewMemoryImage(sm.Sectors)
	}

	log.WithFields(log.Fields{
		"drives":  sm.Drives,
		"image":   sm.Image,
		"sectors": img.Sectors(),
	}).Info("starting simulated machine")

	m := sim.NewMachine(sim.Config{Drives: sm.Drives, Image: img})

	return m, func() {
		m.Close()
		if file != nil {
			if err := file.Close(); err != nil {
				log.Errorf("error closing image: %v", err)
			}
		}
	}, nil
}

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
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/link"
)

//
func NewEmulate() *Emulate {

	e := &Emulate{}
	e.Runner = *NewRunner(
		`emulate -d|--device {device} [-b|--baud {rate}] [--drive {dir},...]
      [-i|--image {file}] [--sectors {count}]`,
		"simulated machine on serial port",
		`Use the emulate command for exposing a simulated MEGA65 on a serial port. A
daemon started with 'serve -d {device}' on the other end of a null modem cable
then talks to this simulated machine as it would to a real one.`,
		"", loggingHelpEpilogue+runnerHelpEpilogue, e.Run)

	e.AddSetting(&e.Device, "device", "d", "HYPPO_DEVICE", nil,
		"serial port device to listen on", true)
	e.AddSetting(&e.Baud, "baud", "b", "", uint(link.DefaultBaudRate),
		"serial port baud rate", false)
	addSimSettings(&e.Command, &e.Simulation)

	return e
}

//
type Emulate struct {
	//
	Runner
	Simulation
	//
	Device string
	Baud   uint
}

//
func (e *Emulate) Run() error {

	if err := e.ParseSettings(); err != nil {
		return err
	}

	m, closer, err := e.newMachine()
	if err != nil {
		return err
	}
	defer closer()

	port, err := link.OpenPort(e.Device, e.Baud)
	if err != nil {
		return err
	}

	var once sync.Once
	closePort := func() {
		once.Do(func() {
			if err := port.Close(); err != nil {
				log.Errorf("error closing port: %v", err)
			}
		})
	}
	defer closePort()

	done := make(chan error, 1)
	go func() {
		log.Infof("serving simulated machine on %s", e.Device)
		done <- link.Serve(port, m)
	}()

	go func() {
		awaitShutdown(closePort)
	}()

	if err := <-done; err != nil && err != io.ErrClosedPipe {
		log.Warnf("link server ended: %v", err)
	}
	return nil
}

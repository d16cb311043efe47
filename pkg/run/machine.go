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
	"net/url"
)

// NewReset creates the command for resetting the SD card controller.
func NewReset() *Reset {

	r := &Reset{}
	r.Runner = *NewRunner(
		"reset [-p|--port {port}]",
		"reset SD card",
		"\nUse the reset command to reset the machine's SD card controller.",
		"", runnerHelpEpilogue, r.Run)

	r.AddBaseSettings()
	return r
}

//
type Reset struct {
	//
	Runner
}

//
func (r *Reset) Run() error {
	if err := r.ParseSettings(); err != nil {
		return err
	}
	return r.apiPrint("PUT", "/sdcard/reset")
}

// NewROM creates the command for toggling ROM write protection.
func NewROM() *ROM {

	r := &ROM{}
	r.Runner = *NewRunner(
		"rom [-p|--port {port}]",
		"toggle ROM write protection",
		`
Use the rom command to toggle the write protection of the ROM area
($20000-$3FFFF) in the machine's memory.`,
		"", runnerHelpEpilogue, r.Run)

	r.AddBaseSettings()
	return r
}

//
type ROM struct {
	//
	Runner
}

//
func (r *ROM) Run() error {
	if err := r.ParseSettings(); err != nil {
		return err
	}
	return r.apiPrint("PUT", "/rom/toggle")
}

//
func NewDebug() *Debug {

	d := &Debug{}
	d.Runner = *NewRunner(
		"debug {message} [-p|--port {port}]",
		"send debug message",
		"\nUse the debug command to send a message to the machine's debug output.",
		"", runnerHelpEpilogue, d.Run)

	d.AddBaseSettings()
	return d
}

//
type Debug struct {
	//
	Runner
}

//
func (d *Debug) Run() error {

	if err := d.ParseSettings(); err != nil {
		return err
	}

	if len(d.Args) == 0 {
		return fmt.Errorf("no message given")
	}

	msg := d.Args[0]
	for _, a := range d.Args[1:] {
		msg += " " + a
	}

	return d.apiPrint("PUT", fmt.Sprintf("/debug?msg=%s", url.QueryEscape(msg)))
}

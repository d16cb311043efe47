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
)

//
func NewDrive() *Drive {

	d := &Drive{}
	d.Runner = *NewRunner(
		"drive [--select {drive}] [-p|--port {port}]",
		"show or select drive",
		`
Use the drive command to show the current and default drive of the machine's
HDOS, or to select a different drive.`,
		"", `- Selecting a drive also resets the working directory to the drive's root.

`+runnerHelpEpilogue, d.Run)

	d.AddBaseSettings()
	d.AddSetting(&d.Select, "select", "", "", -1,
		"number of drive to select", false)

	return d
}

//
type Drive struct {
	//
	Runner
	//
	Select int
}

//
func (d *Drive) Run() error {

	if err := d.ParseSettings(); err != nil {
		return err
	}

	if d.Select < 0 {
		return d.apiPrint("GET", "/drive")
	}

	if d.Select > 255 {
		return fmt.Errorf("invalid drive number: %d", d.Select)
	}

	return d.apiPrint("PUT", fmt.Sprintf("/drive/%d", d.Select))
}

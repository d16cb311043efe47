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
func NewErase() *Erase {

	e := &Erase{}
	e.Runner = *NewRunner(
		"erase -f|--first {sector} [-l|--last {sector}] [-y|--yes] [-p|--port {port}]",
		"zero SD card sectors",
		`
Use the erase command to zero a range of sectors on the machine's SD card.`,
		"", `- Without --last, only the first sector is erased.
- You will be asked for confirmation unless --yes is given.

`+runnerHelpEpilogue, e.Run)

	e.AddBaseSettings()
	e.AddSetting(&e.First, "first", "f", "", uint32(0), "first sector", false)
	e.AddSetting(&e.Last, "last", "l", "", int64(-1), "last sector", false)
	e.AddSetting(&e.Yes, "yes", "y", "", false,
		"don't ask for confirmation", false)

	return e
}

//
type Erase struct {
	//
	Runner
	//
	First uint32
	Last  int64
	Yes   bool
}

//
func (e *Erase) Run() error {

	if err := e.ParseSettings(); err != nil {
		return err
	}

	last := int64(e.First)
	if e.Last >= 0 {
		last = e.Last
	}

	if last < int64(e.First) || last > 0xFFFFFFFF {
		return fmt.Errorf("invalid sector range: %d-%d", e.First, last)
	}

	if !e.Yes && !GetUserConfirmation(fmt.Sprintf(
		"Erase sectors %d through %d on SD card?", e.First, last)) {
		return nil
	}

	return e.apiPrint("PUT",
		fmt.Sprintf("/erase?first=%d&last=%d", e.First, last))
}

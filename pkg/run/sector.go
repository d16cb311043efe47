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
	"bytes"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

//
func NewSector() *Sector {

	s := &Sector{}
	s.Runner = *NewRunner(
		`sector -n|--number {sector} [-o|--output {file}] [-w|--write {file}]
      [-y|--yes] [-p|--port {port}]`,
		"read or write raw SD card sector",
		`
Use the sector command to read a raw sector from the machine's SD card, or to
write one. Without --output, a read sector is shown as hex dump.`,
		"", `- A file to write must be exactly 512 bytes long.
- Writing sectors can destroy the file system on the SD card, so you will be
  asked for confirmation unless --yes is given.

`+runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.Number, "number", "n", "", uint32(0), "sector number", false)
	s.AddSetting(&s.Output, "output", "o", "", nil,
		"file for saving read sector", false)
	s.AddSetting(&s.Write, "write", "w", "", nil,
		"file with sector data to write", false)
	s.AddSetting(&s.Yes, "yes", "y", "", false,
		"don't ask for confirmation", false)

	return s
}

//
type Sector struct {
	//
	Runner
	//
	Number uint32
	Output string
	Write  string
	Yes    bool
}

//
func (s *Sector) Run() error {

	if err := s.ParseSettings(); err != nil {
		return err
	}

	if s.Write != "" {
		return s.write()
	}
	return s.read()
}

//
func (s *Sector) read() error {

	resp, err := s.apiCall("GET", fmt.Sprintf("/sector/%d", s.Number),
		false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	data, err := ioutil.ReadAll(resp)
	if err != nil {
		return err
	}

	if s.Output != "" {
		return ioutil.WriteFile(s.Output, data, 0644)
	}

	d := hex.Dumper(os.Stdout)
	defer d.Close()
	_, err = d.Write(data)
	return err
}

//
func (s *Sector) write() error {

	data, err := ioutil.ReadFile(s.Write)
	if err != nil {
		return err
	}
	if len(data) != hyppo.SectorSize {
		return fmt.Errorf("sector data must be %d bytes, %s has %d",
			hyppo.SectorSize, s.Write, len(data))
	}

	if !s.Yes && !GetUserConfirmation(
		fmt.Sprintf("Overwrite sector %d on SD card?", s.Number)) {
		return nil
	}

	return s.apiSend("PUT", fmt.Sprintf("/sector/%d", s.Number),
		bytes.NewReader(data))
}

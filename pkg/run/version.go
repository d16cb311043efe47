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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

//
func NewVersion() *Version {

	v := &Version{}
	v.Runner = *NewRunner(
		"version [-m|--min {major.minor}] [-p|--port {port}]",
		"show hypervisor version",
		`
Use the version command to show the version of the connected machine's
hypervisor and HDOS.`,
		"", `- With --min, the command fails if either hypervisor or HDOS is older than the
  given version.

`+runnerHelpEpilogue, v.Run)

	v.AddBaseSettings()
	v.AddSetting(&v.Min, "min", "m", "", nil,
		"minimum required version, e.g. '1.2'", false)

	return v
}

//
type Version struct {
	//
	Runner
	//
	Min string
}

//
func (v *Version) Run() error {

	if err := v.ParseSettings(); err != nil {
		return err
	}

	var major, minor byte
	if v.Min != "" {
		var err error
		if major, minor, err = parseVersion(v.Min); err != nil {
			return err
		}
	}

	resp, err := v.apiCall("GET", "/version", true, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	var ver hyppo.Version
	if err := json.NewDecoder(resp).Decode(&ver); err != nil {
		return fmt.Errorf("invalid version reply: %v", err)
	}

	fmt.Println(ver.String())

	if v.Min != "" && !ver.AtLeast(major, minor) {
		return fmt.Errorf("version %d.%d or later required", major, minor)
	}
	return nil
}

// parseVersion parses a version of the form major.minor, minor being
// optional.
func parseVersion(s string) (byte, byte, error) {

	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) > 2 {
		return 0, 0, fmt.Errorf("invalid version: '%s'", s)
	}

	var ret [2]byte
	for ix, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid version: '%s'", s)
		}
		ret[ix] = byte(n)
	}

	return ret[0], ret[1], nil
}

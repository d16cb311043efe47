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
	"strings"
)

//
func NewCd() *Cd {

	c := &Cd{}
	c.Runner = *NewRunner(
		"cd [-r|--root] [{dir}[/{dir}...]] [-p|--port {port}]",
		"change working directory",
		`
Use the cd command to change the machine's working directory. Without a
directory, or with --root, it changes to the root directory of drive 0.`,
		"", `- The hypervisor changes directory one segment at a time. A path with several
  segments is therefore split, and each segment changed into separately. If one
  segment fails, the working directory stays at the previous segment.

`+runnerHelpEpilogue, c.Run)

	c.AddBaseSettings()
	c.AddSetting(&c.Root, "root", "r", "", false,
		"change to root directory of drive 0 first", false)

	return c
}

//
type Cd struct {
	//
	Runner
	//
	Root bool
}

//
func (c *Cd) Run() error {

	if err := c.ParseSettings(); err != nil {
		return err
	}

	var segments []string
	for _, a := range c.Args {
		for _, s := range strings.Split(a, "/") {
			if s != "" {
				segments = append(segments, s)
			}
		}
	}

	if c.Root || len(segments) == 0 {
		if err := c.apiPrint("PUT", "/cd/root"); err != nil {
			return err
		}
	}

	for _, s := range segments {
		if err := c.apiPrint("PUT",
			fmt.Sprintf("/cd?dir=%s", url.QueryEscape(s))); err != nil {
			return err
		}
	}

	return nil
}

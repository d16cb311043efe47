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
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

//
func NewGet() *Get {

	g := &Get{}
	g.Runner = *NewRunner(
		"get -n|--name {file} [-o|--output {file}] [-f|--force] [-p|--port {port}]",
		"get file from machine",
		`
Use the get command to read a file from the machine's working directory and
save it on the local file system.`,
		"", `- When no output file is given, the file is saved under its own name in the
  current directory. Use '-' as the output file for writing to stdout.

`+runnerHelpEpilogue, g.Run)

	g.AddBaseSettings()
	g.AddSetting(&g.Name, "name", "n", "", nil, "file to get", true)
	g.AddSetting(&g.Output, "output", "o", "", nil, "output file", false)
	g.AddSetting(&g.Force, "force", "f", "", false,
		"force overwriting output file", false)

	return g
}

//
type Get struct {
	//
	Runner
	//
	Name   string
	Output string
	Force  bool
}

//
func (g *Get) Run() error {

	if err := g.ParseSettings(); err != nil {
		return err
	}

	out := g.Output
	if out == "" {
		out = filepath.Base(g.Name)
	}

	if out != "-" && !g.Force {
		if _, err := os.Stat(out); err == nil &&
			!GetUserConfirmation("File exists, overwrite?") {
			return nil
		}
	}

	resp, err := g.apiCall("GET",
		fmt.Sprintf("/file?name=%s", url.QueryEscape(g.Name)), false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	if out == "-" {
		_, err := io.Copy(os.Stdout, resp)
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	n, err := io.Copy(w, resp)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("%d bytes saved to %s\n", n, out)
	return nil
}

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

package main

import (
	"fmt"
	"os"

	"github.com/xelalexv/hyppolink/pkg/run"
)

//
var HyppoLinkVersion string

//
func synopsis() {
	fmt.Print(`
synopsis: hyppoctl {serve|emulate|status|version|drive|cd|get|sector|erase|
                    reset|rom|debug} ...

run 'hyppoctl {action} -h|--help' to see detailed info

`)
}

//
func version() {
	fmt.Printf("\nHyppoLink %s\n\n", HyppoLinkVersion)
}

//
func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch action {

	case "serve":
		version()
		run.DieOnError(run.NewServe().Execute(args))

	case "emulate":
		version()
		run.DieOnError(run.NewEmulate().Execute(args))

	case "status":
		run.DieOnError(run.NewStatus().Execute(args))

	case "version":
		version()
		run.DieOnError(run.NewVersion().Execute(args))

	case "drive":
		run.DieOnError(run.NewDrive().Execute(args))

	case "cd":
		run.DieOnError(run.NewCd().Execute(args))

	case "get":
		run.DieOnError(run.NewGet().Execute(args))

	case "sector":
		run.DieOnError(run.NewSector().Execute(args))

	case "erase":
		run.DieOnError(run.NewErase().Execute(args))

	case "reset":
		run.DieOnError(run.NewReset().Execute(args))

	case "rom":
		run.DieOnError(run.NewROM().Execute(args))

	case "debug":
		run.DieOnError(run.NewDebug().Execute(args))

	case "":
		fallthrough
	case "-h":
		fallthrough
	case "--help":
		synopsis()

	default:
		run.Die("unknown action: %s\n", action)
	}
}

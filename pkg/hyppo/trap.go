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

package hyppo

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Command is the one byte code written to the trap register to select a
// hypervisor service.
type Command byte

const CmdVersion Command = 0x00          // get hypervisor & HDOS version
const CmdDefaultDrive Command = 0x02     // get default drive
const CmdCurrentDrive Command = 0x04     // get current drive
const CmdSelectDrive Command = 0x06      // select drive in X
const CmdChdir Command = 0x0C            // chdir into last found entry
const CmdOpenFile Command = 0x18         // open last found entry
const CmdReadFile Command = 0x1A         // read 512 bytes into sector buffer
const CmdCloseFile Command = 0x20        // close descriptor in X
const CmdCloseAll Command = 0x22         // close all descriptors
const CmdSetName Command = 0x2E          // set name from X/Y address
const CmdFindFile Command = 0x34         // look up name in current dir
const CmdErrorCode Command = 0x38        // get last error code
const CmdCdRootDir Command = 0x3C        // cd to root of drive in X
const CmdToggleROMProtect Command = 0x70 // toggle $20000-$3FFFF protection

//
var commandNames = map[Command]string{
	CmdVersion:          "version",
	CmdDefaultDrive:     "getdefaultdrive",
	CmdCurrentDrive:     "getcurrentdrive",
	CmdSelectDrive:      "selectdrive",
	CmdChdir:            "chdir",
	CmdOpenFile:         "openfile",
	CmdReadFile:         "readfile",
	CmdCloseFile:        "closefile",
	CmdCloseAll:         "closeall",
	CmdSetName:          "setname",
	CmdFindFile:         "findfile",
	CmdErrorCode:        "geterrorcode",
	CmdCdRootDir:        "cdrootdir",
	CmdToggleROMProtect: "togglerom",
}

//
func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("$%02X", byte(c))
}

// Registers are the CPU register slots through which arguments go into and
// results come out of a trap. Carry is set by the hypervisor on success for
// the DOS calls.
type Registers struct {
	A     byte
	X     byte
	Y     byte
	Z     byte
	Carry bool
}

// Quad returns the 32 bit Q register, i.e. A, X, Y, Z with A as least
// significant byte.
func (r Registers) Quad() uint32 {
	return uint32(r.A) | uint32(r.X)<<8 | uint32(r.Y)<<16 | uint32(r.Z)<<24
}

// XY returns X as low and Y as high byte of a 16 bit value.
func (r Registers) XY() uint16 {
	return uint16(r.X) | uint16(r.Y)<<8
}

//
func (r Registers) String() string {
	c := 0
	if r.Carry {
		c = 1
	}
	return fmt.Sprintf("A=%02X X=%02X Y=%02X Z=%02X C=%d", r.A, r.X, r.Y, r.Z, c)
}

/*
	Machine is the hardware a driver talks to. Trap writes cmd to the trap
	register with the given registers loaded, and returns the registers as the
	hypervisor left them. ReadAt/WriteAt move blocks of memory within the 28
	bit address space, the way DMA does on the real machine.

	Errors returned by a Machine are transport errors, e.g. a dropped serial
	link. Failures of the requested service are always reported through the
	register slots.
*/
type Machine interface {
	Trap(cmd Command, in Registers) (Registers, error)
	Peek(addr uint32) (byte, error)
	Poke(addr uint32, v byte) error
	ReadAt(p []byte, addr uint32) (int, error)
	WriteAt(p []byte, addr uint32) (int, error)
}

// NewGateway creates a gateway for issuing traps on machine m.
func NewGateway(m Machine) *Gateway {
	return &Gateway{machine: m}
}

/*
	Gateway is the single point through which traps are issued. The hardware
	has no reentrancy protection, so Gateway serializes all calls. A sequence
	of calls that must not interleave with other callers, e.g. set name, find
	and open, is run through Sequence.
*/
type Gateway struct {
	machine Machine
	mutex   sync.Mutex
}

//
func (g *Gateway) Machine() Machine {
	return g.machine
}

// Issue issues a single trap and blocks until the hypervisor returns.
func (g *Gateway) Issue(cmd Command, in Registers) (Registers, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.issue(cmd, in)
}

// Sequence runs fn while holding the gateway, so that no other caller can
// issue traps or touch memory until fn returns. Within fn, use the passed
// Session rather than the gateway itself.
func (g *Gateway) Sequence(fn func(s *Session) error) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return fn(&Session{g: g})
}

//
func (g *Gateway) issue(cmd Command, in Registers) (Registers, error) {

	out, err := g.machine.Trap(cmd, in)

	log.WithFields(log.Fields{
		"trap": cmd.String(),
		"in":   in.String(),
		"out":  out.String(),
	}).Trace("TRAP")

	if err != nil {
		return Registers{}, fmt.Errorf("error issuing trap %s: %v", cmd, err)
	}
	return out, nil
}

// Session is a gateway held by a running Sequence.
type Session struct {
	g *Gateway
}

//
func (s *Session) Issue(cmd Command, in Registers) (Registers, error) {
	return s.g.issue(cmd, in)
}

//
func (s *Session) Machine() Machine {
	return s.g.machine
}

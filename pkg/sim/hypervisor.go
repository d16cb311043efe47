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

package sim

import (
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

// HDOS error codes
const (
	ErrNoSuchDrive     byte = 0x80
	ErrNameTooLong     byte = 0x81
	ErrNotImplemented  byte = 0x82
	ErrTooManyOpen     byte = 0x84
	ErrIsDirectory     byte = 0x86
	ErrNotDirectory    byte = 0x87
	ErrFileNotFound    byte = 0x88
	ErrInvalidFD       byte = 0x89
	ErrEndOfFile       byte = 0xFF
	romProtectedStatus byte = 1 << 2
)

// the hypervisor has room for this many open files
const maxOpenFiles = 4

// handler implements a single trap. It receives the registers as loaded by
// the caller, and returns them as left for the caller.
type handler struct {
	desc string
	fn   func(h *hypervisor, in hyppo.Registers) hyppo.Registers
}

//
func newHypervisor(m *Machine, drives []string, v hyppo.Version) *hypervisor {

	h := &hypervisor{
		machine:      m,
		version:      v,
		fs:           newFileSystem(drives),
		romProtected: true,
	}

	h.handlers = map[hyppo.Command]handler{
		hyppo.CmdVersion:          {"version", trapVersion},
		hyppo.CmdDefaultDrive:     {"getdefaultdrive", trapDefaultDrive},
		hyppo.CmdCurrentDrive:     {"getcurrentdrive", trapCurrentDrive},
		hyppo.CmdSelectDrive:      {"selectdrive", trapSelectDrive},
		hyppo.CmdChdir:            {"chdir", trapChdir},
		hyppo.CmdOpenFile:         {"openfile", trapOpenFile},
		hyppo.CmdReadFile:         {"readfile", trapReadFile},
		hyppo.CmdCloseFile:        {"closefile", trapCloseFile},
		hyppo.CmdCloseAll:         {"closeall", trapCloseAll},
		hyppo.CmdSetName:          {"setname", trapSetName},
		hyppo.CmdFindFile:         {"findfile", trapFindFile},
		hyppo.CmdErrorCode:        {"geterrorcode", trapErrorCode},
		hyppo.CmdCdRootDir:        {"cdrootdir", trapCdRootDir},
		hyppo.CmdToggleROMProtect: {"togglerom", trapToggleROM},
	}

	return h
}

// hypervisor emulates the DOS services of the MEGA65 hypervisor on top of
// host directories.
type hypervisor struct {
	machine  *Machine
	handlers map[hyppo.Command]handler
	version  hyppo.Version
	//
	fs           *fileSystem
	name         string
	lastError    byte
	romProtected bool
}

//
func (h *hypervisor) dispatch(cmd hyppo.Command, in hyppo.Registers) hyppo.Registers {

	hd, found := h.handlers[cmd]
	if !found {
		log.Warnf("unimplemented trap $%02X", byte(cmd))
		return h.fail(in, ErrNotImplemented)
	}

	out := hd.fn(h, in)
	log.WithFields(log.Fields{
		"trap": hd.desc,
		"in":   in.String(),
		"out":  out.String(),
	}).Trace("hypervisor")

	return out
}

//
func (h *hypervisor) closeAll() {
	h.fs.closeAll()
}

// fail returns from a trap with carry clear and code in A, remembering the
// code for geterrorcode.
func (h *hypervisor) fail(r hyppo.Registers, code byte) hyppo.Registers {
	h.lastError = code
	r.A = code
	r.Carry = false
	return r
}

//
func ok(r hyppo.Registers, a byte) hyppo.Registers {
	r.A = a
	r.Carry = true
	return r
}

//
func trapVersion(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	return hyppo.Registers{
		A:     h.version.HyppoMajor,
		X:     h.version.HyppoMinor,
		Y:     h.version.HDOSMajor,
		Z:     h.version.HDOSMinor,
		Carry: true,
	}
}

//
func trapDefaultDrive(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	return ok(in, h.fs.defaultDrive)
}

//
func trapCurrentDrive(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	return ok(in, h.fs.current)
}

//
func trapSelectDrive(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	if !h.fs.selectDrive(in.X) {
		return h.fail(in, ErrNoSuchDrive)
	}
	return ok(in, 0)
}

//
func trapCdRootDir(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	if !h.fs.selectDrive(in.X) {
		return h.fail(in, ErrNoSuchDrive)
	}
	return ok(in, 0)
}

//
func trapSetName(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	name, valid := h.machine.cString(uint32(in.XY()), hyppo.MaxNameLength)
	if !valid {
		return h.fail(in, ErrNameTooLong)
	}
	h.name = name
	return ok(in, 0)
}

//
func trapFindFile(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	if code := h.fs.find(h.name); code != 0 {
		return h.fail(in, code)
	}
	return ok(in, 0)
}

//
func trapChdir(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	if code := h.fs.chdir(); code != 0 {
		return h.fail(in, code)
	}
	return ok(in, 0)
}

//
func trapOpenFile(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	fd, code := h.fs.open()
	if code != 0 {
		return h.fail(in, code)
	}
	return ok(in, fd)
}

//
func trapReadFile(h *hypervisor, in hyppo.Registers) hyppo.Registers {

	in.X, in.Y = 0, 0

	n, code := h.fs.read(h.machine.card.buffer)
	if code != 0 {
		return h.fail(in, code)
	}

	in.X, in.Y = byte(n), byte(n>>8)
	return ok(in, 0)
}

//
func trapCloseFile(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	if code := h.fs.close(in.X); code != 0 {
		return h.fail(in, code)
	}
	return ok(in, 0)
}

//
func trapCloseAll(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	h.fs.closeAll()
	return ok(in, 0)
}

//
func trapErrorCode(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	return ok(in, h.lastError)
}

//
func trapToggleROM(h *hypervisor, in hyppo.Registers) hyppo.Registers {
	h.romProtected = !h.romProtected
	log.WithField("protected", h.romProtected).Debug("ROM write protection")
	if h.romProtected {
		return ok(in, romProtectedStatus)
	}
	return ok(in, 0)
}

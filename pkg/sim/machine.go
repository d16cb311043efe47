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
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

// ChipRAMSize is the amount of plain RAM from address 0 upwards.
const ChipRAMSize = 384 * 1024

//
type Config struct {
	// host directories serving as drives 0, 1, ...
	Drives []string
	// backing store for the SD card; when nil, no card is present
	Image Image
	// reported by the version trap; defaults to DefaultVersion
	Version *hyppo.Version
}

// DefaultVersion is what a simulated hypervisor reports unless configured
// otherwise.
var DefaultVersion = hyppo.Version{
	HyppoMajor: 1, HyppoMinor: 2, HDOSMajor: 1, HDOSMinor: 2}

/*
	NewMachine creates a simulated MEGA65 with hypervisor, SD card controller,
	and debug output. The machine is safe for use by several goroutines, each
	trap and memory access is atomic.
*/
func NewMachine(cfg Config) *Machine {

	m := &Machine{
		ram:   make([]byte, ChipRAMSize),
		card:  newController(cfg.Image),
		debug: &debugOut{},
	}

	version := DefaultVersion
	if cfg.Version != nil {
		version = *cfg.Version
	}
	m.hyppo = newHypervisor(m, cfg.Drives, version)

	return m
}

// Machine is a simulated MEGA65, implementing hyppo.Machine.
type Machine struct {
	mutex sync.Mutex
	//
	ram   []byte
	fast  bool
	hyppo *hypervisor
	card  *controller
	debug *debugOut
}

//
func (m *Machine) Trap(cmd hyppo.Command, in hyppo.Registers) (hyppo.Registers, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.hyppo.dispatch(cmd, in), nil
}

//
func (m *Machine) Peek(addr uint32) (byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.peek(addr), nil
}

//
func (m *Machine) Poke(addr uint32, v byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.poke(addr, v)
	return nil
}

//
func (m *Machine) ReadAt(p []byte, addr uint32) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for ix := range p {
		p[ix] = m.peek(addr + uint32(ix))
	}
	return len(p), nil
}

//
func (m *Machine) WriteAt(p []byte, addr uint32) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for ix, v := range p {
		m.poke(addr+uint32(ix), v)
	}
	return len(p), nil
}

// IsFast reports whether the CPU was switched to full speed.
func (m *Machine) IsFast() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.fast
}

// IsROMWriteProtected reports the state of the ROM area protection.
func (m *Machine) IsROMWriteProtected() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.hyppo.romProtected
}

// DebugLines returns all complete lines received on the debug output.
func (m *Machine) DebugLines() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string{}, m.debug.lines...)
}

// Close closes all files the hypervisor holds open on the host.
func (m *Machine) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.hyppo.closeAll()
	return nil
}

//
func (m *Machine) peek(addr uint32) byte {

	switch {
	case inRange(addr, hyppo.AddrSectorBuffer, hyppo.SectorSize):
		return m.card.buffer[addr-hyppo.AddrSectorBuffer]

	case m.card.mapped && inRange(addr, hyppo.AddrBufferWindow, hyppo.SectorSize):
		return m.card.buffer[addr-hyppo.AddrBufferWindow]

	case addr == hyppo.AddrSDControl:
		return m.card.status

	case inRange(addr, hyppo.AddrSDAddress, 4):
		return m.card.address[addr-hyppo.AddrSDAddress]

	case addr == hyppo.AddrSDBufferCtl:
		return m.card.bufferCtl

	case addr < uint32(len(m.ram)):
		return m.ram[addr]
	}

	return 0xff // open bus
}

//
func (m *Machine) poke(addr uint32, v byte) {

	switch {
	case inRange(addr, hyppo.AddrSectorBuffer, hyppo.SectorSize):
		m.card.buffer[addr-hyppo.AddrSectorBuffer] = v

	case m.card.mapped && inRange(addr, hyppo.AddrBufferWindow, hyppo.SectorSize):
		m.card.buffer[addr-hyppo.AddrBufferWindow] = v

	case addr == hyppo.AddrSDControl:
		m.card.command(v)

	case inRange(addr, hyppo.AddrSDAddress, 4):
		m.card.address[addr-hyppo.AddrSDAddress] = v

	case addr == hyppo.AddrSDBufferCtl:
		m.card.bufferCtl = v

	case addr == hyppo.AddrDebugOut:
		m.debug.put(v)

	case addr == hyppo.AddrCPUPort:
		m.ram[addr] = v
		if v == hyppo.CPUFast {
			m.fast = true
			log.Debug("CPU at full speed")
		}

	case addr < uint32(len(m.ram)):
		m.ram[addr] = v

	default:
		log.Tracef("write to unmapped address $%07X ignored", addr)
	}
}

// cString reads a NUL terminated string of at most max bytes starting at
// addr. ok is false if there is no NUL within max+1 bytes.
func (m *Machine) cString(addr uint32, max int) (string, bool) {
	var sb strings.Builder
	for ix := 0; ix <= max; ix++ {
		c := m.peek(addr + uint32(ix))
		if c == 0 {
			return sb.String(), true
		}
		sb.WriteByte(c)
	}
	return "", false
}

//
func inRange(addr, start uint32, length int) bool {
	return start <= addr && addr < start+uint32(length)
}

//
type debugOut struct {
	line  []byte
	lines []string
}

//
func (d *debugOut) put(c byte) {
	switch c {
	case '\r':
	case '\n':
		l := string(d.line)
		d.lines = append(d.lines, l)
		d.line = d.line[:0]
		log.WithField("source", "machine").Info(l)
	default:
		d.line = append(d.line, c)
	}
}

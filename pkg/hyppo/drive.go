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
	log "github.com/sirupsen/logrus"
)

// SelectDrive selects SD card partition n. The returned code is the one
// from the hypervisor. If the hypervisor signals failure, an *Error with
// the same code is returned as well, ErrorNoSuchDrive for an invalid n.
func (h *Hyppo) SelectDrive(n byte) (byte, error) {
	out, err := h.gateway.Issue(CmdSelectDrive, Registers{X: n})
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"drive": n, "code": out.A}).Debug("select drive")
	return out.A, failure("select drive", out)
}

// CurrentDrive returns the currently selected drive.
func (h *Hyppo) CurrentDrive() (byte, error) {
	out, err := h.gateway.Issue(CmdCurrentDrive, Registers{})
	if err != nil {
		return 0, err
	}
	return out.A, nil
}

// DefaultDrive returns the drive the hypervisor selected at boot.
func (h *Hyppo) DefaultDrive() (byte, error) {
	out, err := h.gateway.Issue(CmdDefaultDrive, Registers{})
	if err != nil {
		return 0, err
	}
	return out.A, nil
}

/*
	Chdir changes the working directory by one path segment, relative to the
	current directory. The segment must not contain separators. The returned
	code is passed on as is, no particular value of it is meaningful. Whether
	the change succeeded is signalled by the returned error only.
*/
func (h *Hyppo) Chdir(segment string) (byte, error) {

	var code byte

	err := h.gateway.Sequence(func(s *Session) error {

		out, err := findName(s, segment)
		if err != nil {
			return err
		}
		if !out.Carry {
			code = out.A
			return failure("chdir", out)
		}

		if out, err = s.Issue(CmdChdir, Registers{}); err != nil {
			return err
		}
		code = out.A
		return failure("chdir", out)
	})

	if err == ErrNameTooLong {
		return 0, err
	}

	log.WithFields(log.Fields{"dir": segment, "code": code}).Debug("chdir")
	return code, err
}

// ChdirRoot changes to the root directory of drive 0. Codes are the same as
// for SelectDrive.
func (h *Hyppo) ChdirRoot() (byte, error) {
	out, err := h.gateway.Issue(CmdCdRootDir, Registers{X: 0})
	if err != nil {
		return 0, err
	}
	log.WithField("code", out.A).Debug("chdir root")
	return out.A, failure("chdir root", out)
}

// findName hands name to the hypervisor and looks it up in the current
// directory.
func findName(s *Session, name string) (Registers, error) {

	if len(name) > MaxNameLength {
		return Registers{}, ErrNameTooLong
	}

	buf := make([]byte, len(name)+1)
	copy(buf, name)
	if _, err := s.Machine().WriteAt(buf, AddrNameBuffer); err != nil {
		return Registers{}, err
	}

	out, err := s.Issue(CmdSetName, Registers{
		X: byte(AddrNameBuffer & 0xFF), Y: byte(AddrNameBuffer >> 8)})
	if err != nil || !out.Carry {
		return out, err
	}

	return s.Issue(CmdFindFile, Registers{})
}

//
func failure(op string, out Registers) error {
	if out.Carry {
		return nil
	}
	return &Error{Op: op, Code: out.A}
}

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
	"errors"
	"fmt"
)

// firmware codes with defined meaning
const (
	ErrorNoSuchDrive  byte = 0x80
	InvalidDescriptor      = Descriptor(0xFF)
)

// protocol violations detected before anything is sent to the machine
var (
	ErrBufferMapped = errors.New("sector buffer already mapped")
	ErrInvalidRange = errors.New("first sector is beyond last sector")
	ErrNameTooLong  = fmt.Errorf("name longer than %d bytes", MaxNameLength)
	ErrShortBuffer  = fmt.Errorf("buffer shorter than %d bytes", SectorSize)
	ErrFileClosed   = errors.New("file already closed")
)

// Error is a failure reported by the hypervisor or the SD controller. Code
// is passed on verbatim.
type Error struct {
	Op   string
	Code byte
}

//
func (e *Error) Error() string {
	return fmt.Sprintf("%s failed with code $%02X", e.Op, e.Code)
}

// IsCode reports whether err is an *Error carrying code.
func IsCode(err error, code byte) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of err if it is an *Error, and false otherwise.
func CodeOf(err error) (byte, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

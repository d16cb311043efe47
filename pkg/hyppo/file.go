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
	"bytes"
	"io"

	log "github.com/sirupsen/logrus"
)

// Descriptor is a handle into the hypervisor's file table.
type Descriptor byte

//
func (d Descriptor) Valid() bool {
	return d != InvalidDescriptor
}

/*
	Open opens the file called name in the current directory for reading.
	On failure, InvalidDescriptor is returned together with an *Error. The
	cause of the failure is not distinguished, use LastError to ask the
	hypervisor.
*/
func (h *Hyppo) Open(name string) (Descriptor, error) {

	fd := InvalidDescriptor

	err := h.gateway.Sequence(func(s *Session) error {

		out, err := findName(s, name)
		if err == ErrNameTooLong {
			return &Error{Op: "open", Code: byte(InvalidDescriptor)}
		} else if err != nil {
			return err
		} else if !out.Carry {
			return &Error{Op: "open", Code: byte(InvalidDescriptor)}
		}

		if out, err = s.Issue(CmdOpenFile, Registers{}); err != nil {
			return err
		} else if !out.Carry {
			return &Error{Op: "open", Code: byte(InvalidDescriptor)}
		}

		fd = Descriptor(out.A)
		return nil
	})

	log.WithFields(log.Fields{"name": name, "fd": fd}).Debug("open")
	return fd, err
}

/*
	Read512 reads the next chunk of up to 512 bytes from the file opened last
	into the sector buffer, and from there into buf, which must be able to
	hold SectorSize bytes. It returns the number of bytes read, 0 at end of
	file. Calling Read512 without an open file is not checked, the hypervisor
	decides what happens.
*/
func (h *Hyppo) Read512(buf []byte) (int, error) {

	if len(buf) < SectorSize {
		return 0, ErrShortBuffer
	}

	var count int

	err := h.gateway.Sequence(func(s *Session) error {

		out, err := s.Issue(CmdReadFile, Registers{})
		if err != nil {
			return err
		}

		if count = int(out.XY()); count > SectorSize {
			count = SectorSize
		}

		ctl, err := s.Machine().Peek(AddrSDBufferCtl)
		if err != nil {
			return err
		}
		if err := s.Machine().Poke(
			AddrSDBufferCtl, ctl|SDBufferSelectSD); err != nil {
			return err
		}

		_, err = h.Buffer.read(s, buf[:SectorSize])
		return err
	})

	if err != nil {
		return 0, err
	}

	log.WithField("count", count).Trace("read512")
	return count, nil
}

// Close closes descriptor fd. Closing an invalid or already closed
// descriptor is left to the hypervisor.
func (h *Hyppo) Close(fd Descriptor) error {
	_, err := h.gateway.Issue(CmdCloseFile, Registers{X: byte(fd)})
	log.WithField("fd", fd).Debug("close")
	return err
}

// CloseAll closes all descriptors.
func (h *Hyppo) CloseAll() error {
	_, err := h.gateway.Issue(CmdCloseAll, Registers{})
	log.Debug("close all")
	return err
}

// LastError returns the code of the most recent hypervisor failure.
func (h *Hyppo) LastError() (byte, error) {
	out, err := h.gateway.Issue(CmdErrorCode, Registers{})
	if err != nil {
		return 0, err
	}
	return out.A, nil
}

// OpenFile opens name and returns it as a File.
func (h *Hyppo) OpenFile(name string) (*File, error) {
	fd, err := h.Open(name)
	if err != nil {
		return nil, err
	}
	return &File{hyppo: h, fd: fd, name: name}, nil
}

// ReadFile reads the complete file called name from the current directory.
// Open descriptors are closed first.
func (h *Hyppo) ReadFile(name string) ([]byte, error) {

	if err := h.CloseAll(); err != nil {
		return nil, err
	}

	f, err := h.OpenFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ret bytes.Buffer
	if _, err := io.Copy(&ret, f); err != nil {
		return nil, err
	}
	return ret.Bytes(), nil
}

/*
	File is an open hypervisor file, readable as a stream. It moves through
	open, EOF, and closed. EOF is final, and a closed File cannot be reused.
	The hypervisor always reads from the file opened last, so reading a File
	after another one was opened yields the other file's data.
*/
type File struct {
	hyppo *Hyppo
	fd    Descriptor
	name  string
	//
	chunk  []byte
	eof    bool
	closed bool
}

//
func (f *File) Name() string {
	return f.name
}

//
func (f *File) Descriptor() Descriptor {
	return f.fd
}

//
func (f *File) EOF() bool {
	return f.eof
}

// ReadChunk reads the next chunk of up to 512 bytes via Read512.
func (f *File) ReadChunk(buf []byte) (int, error) {

	if f.closed {
		return 0, ErrFileClosed
	}

	if f.eof {
		return 0, nil
	}

	n, err := f.hyppo.Read512(buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		f.eof = true
	}
	return n, nil
}

// Read implements io.Reader on top of ReadChunk.
func (f *File) Read(p []byte) (int, error) {

	if f.closed {
		return 0, ErrFileClosed
	}

	if len(f.chunk) == 0 {
		buf := make([]byte, SectorSize)
		n, err := f.ReadChunk(buf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		f.chunk = buf[:n]
	}

	n := copy(p, f.chunk)
	f.chunk = f.chunk[n:]
	return n, nil
}

//
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.chunk = nil
	return f.hyppo.Close(f.fd)
}

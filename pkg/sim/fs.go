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
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

//
func newFileSystem(drives []string) *fileSystem {
	return &fileSystem{drives: drives, currentFD: -1}
}

// fileSystem maps drives to host directories. Names are matched case
// insensitively, the way file names on a FAT card behave.
type fileSystem struct {
	drives       []string
	defaultDrive byte
	current      byte
	cwd          []string
	//
	found     *entry
	files     [maxOpenFiles]*openFile
	currentFD int
}

//
type entry struct {
	name  string // as on host; ".." for parent
	isDir bool
}

//
type openFile struct {
	file *os.File
	eof  bool
}

// selectDrive makes drive n current, with its root as working directory.
func (fs *fileSystem) selectDrive(n byte) bool {
	if int(n) >= len(fs.drives) {
		return false
	}
	fs.current = n
	fs.cwd = nil
	fs.found = nil
	log.WithField("drive", n).Debug("drive selected")
	return true
}

//
func (fs *fileSystem) dir() string {
	if int(fs.current) >= len(fs.drives) {
		return ""
	}
	return filepath.Join(append([]string{fs.drives[fs.current]}, fs.cwd...)...)
}

// find looks up name in the working directory and remembers the hit for
// open and chdir. Names are single path segments.
func (fs *fileSystem) find(name string) byte {

	fs.found = nil

	if name == "" || strings.ContainsAny(name, `/\`) || fs.dir() == "" {
		return ErrFileNotFound
	}

	if name == "." || name == ".." {
		fs.found = &entry{name: name, isDir: true}
		return 0
	}

	entries, err := os.ReadDir(fs.dir())
	if err != nil {
		log.Errorf("cannot read directory %s: %v", fs.dir(), err)
		return ErrFileNotFound
	}

	for _, e := range entries {
		if strings.EqualFold(e.Name(), name) {
			fs.found = &entry{name: e.Name(), isDir: e.IsDir()}
			return 0
		}
	}

	return ErrFileNotFound
}

// chdir changes into the directory found last.
func (fs *fileSystem) chdir() byte {

	if fs.found == nil {
		return ErrFileNotFound
	}
	if !fs.found.isDir {
		return ErrNotDirectory
	}

	switch fs.found.name {
	case ".":
	case "..":
		if len(fs.cwd) > 0 {
			fs.cwd = fs.cwd[:len(fs.cwd)-1]
		}
	default:
		fs.cwd = append(fs.cwd, fs.found.name)
	}

	log.WithField("cwd", "/"+strings.Join(fs.cwd, "/")).Debug("chdir")
	return 0
}

// open opens the file found last, and makes it the current file.
func (fs *fileSystem) open() (byte, byte) {

	if fs.found == nil {
		return 0, ErrFileNotFound
	}
	if fs.found.isDir {
		return 0, ErrIsDirectory
	}

	fd := -1
	for ix, f := range fs.files {
		if f == nil {
			fd = ix
			break
		}
	}
	if fd == -1 {
		return 0, ErrTooManyOpen
	}

	f, err := os.Open(filepath.Join(fs.dir(), fs.found.name))
	if err != nil {
		log.Errorf("cannot open file: %v", err)
		return 0, ErrFileNotFound
	}

	fs.files[fd] = &openFile{file: f}
	fs.currentFD = fd
	log.WithFields(log.Fields{"file": f.Name(), "fd": fd}).Debug("file opened")

	return byte(fd), 0
}

// read reads the next chunk of the current file into buf, which is
// SectorSize long. At end of file, buf is left untouched.
func (fs *fileSystem) read(buf []byte) (int, byte) {

	if fs.currentFD < 0 || fs.files[fs.currentFD] == nil {
		return 0, ErrInvalidFD
	}

	f := fs.files[fs.currentFD]
	if f.eof {
		return 0, ErrEndOfFile
	}

	chunk := make([]byte, len(buf))
	n, err := io.ReadFull(f.file, chunk)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		log.Errorf("error reading file: %v", err)
	}

	if n == 0 {
		f.eof = true
		return 0, ErrEndOfFile
	}

	copy(buf, chunk[:n])
	return n, 0
}

//
func (fs *fileSystem) close(fd byte) byte {

	if int(fd) >= len(fs.files) || fs.files[fd] == nil {
		return ErrInvalidFD
	}

	if err := fs.files[fd].file.Close(); err != nil {
		log.Errorf("error closing file: %v", err)
	}
	fs.files[fd] = nil
	if fs.currentFD == int(fd) {
		fs.currentFD = -1
	}

	return 0
}

//
func (fs *fileSystem) closeAll() {
	for ix := range fs.files {
		if fs.files[ix] != nil {
			fs.close(byte(ix))
		}
	}
	fs.currentFD = -1
}

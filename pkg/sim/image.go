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
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

// Image is the backing store of a simulated SD card.
type Image interface {
	io.ReaderAt
	io.WriterAt
	Sectors() uint32
}

// NewMemoryImage creates a zeroed in-memory image of the given number of
// sectors.
func NewMemoryImage(sectors uint32) Image {
	return &memoryImage{data: make([]byte, int64(sectors)*hyppo.SectorSize)}
}

//
type memoryImage struct {
	data []byte
}

//
func (i *memoryImage) Sectors() uint32 {
	return uint32(len(i.data) / hyppo.SectorSize)
}

//
func (i *memoryImage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(i.data)) {
		return 0, io.EOF
	}
	n := copy(p, i.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

//
func (i *memoryImage) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(i.data)) {
		return 0, io.EOF
	}
	n := copy(i.data[off:], p)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

/*
	OpenImage opens the image file at path, creating it if it does not exist.
	If sectors is not 0 and the file is smaller, it is grown to that many
	sectors. Otherwise, the sector count is taken from the file size.
*/
func OpenImage(path string, sectors uint32) (*FileImage, error) {

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := int64(sectors) * hyppo.SectorSize
	if size > info.Size() {
		log.WithFields(log.Fields{
			"image": path, "sectors": sectors}).Info("growing SD card image")
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("cannot grow image: %v", err)
		}
	} else {
		size = info.Size()
	}

	if size < hyppo.SectorSize {
		f.Close()
		return nil, fmt.Errorf("image %s holds no complete sector", path)
	}

	return &FileImage{file: f, sectors: uint32(size / hyppo.SectorSize)}, nil
}

// FileImage is an Image kept in a host file.
type FileImage struct {
	file    *os.File
	sectors uint32
}

//
func (i *FileImage) Sectors() uint32 {
	return i.sectors
}

//
func (i *FileImage) ReadAt(p []byte, off int64) (int, error) {
	return i.file.ReadAt(p, off)
}

//
func (i *FileImage) WriteAt(p []byte, off int64) (int, error) {
	return i.file.WriteAt(p, off)
}

//
func (i *FileImage) Close() error {
	return i.file.Close()
}

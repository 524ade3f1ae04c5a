// Package blockio is the bottom layer of the FAT32 engine: absolute sector
// read/write against a seekable image handle. It does no caching and knows
// nothing about clusters, FAT entries, or directories; every call hits the
// underlying handle directly, which is acceptable because the image is small
// and the shell is interactive (see spec §4.1).
package blockio

import (
	"io"

	"fat32disk/errors"
)

// SectorSize is the fixed size of a single sector, in bytes.
const SectorSize = 512

// Device is an absolute-sector view over a seekable backing store. The
// backing store can be a real *os.File or, in tests, an in-memory buffer
// wrapped with github.com/xaionaro-go/bytesextra.
type Device struct {
	stream io.ReadWriteSeeker
}

// New wraps a seekable stream as a sector-addressable block device. The
// stream's length must already be a multiple of SectorSize; Device does not
// truncate or grow it.
func New(stream io.ReadWriteSeeker) *Device {
	return &Device{stream: stream}
}

// ReadSector reads exactly SectorSize bytes from sector n into buf. buf must
// be at least SectorSize bytes long.
func (d *Device) ReadSector(n uint32, buf []byte) error {
	if len(buf) < SectorSize {
		return errors.ErrIO.WithMessage("buffer shorter than one sector")
	}

	offset := int64(n) * SectorSize
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return errors.ErrIO.WrapError(err)
	}

	n64, err := io.ReadFull(d.stream, buf[:SectorSize])
	if err != nil {
		return errors.ErrIO.WrapError(err)
	}
	if n64 != SectorSize {
		return errors.ErrIO.WithMessage("short read")
	}
	return nil
}

// WriteSector writes exactly SectorSize bytes from buf to sector n and
// flushes the change if the backing stream supports it.
func (d *Device) WriteSector(n uint32, buf []byte) error {
	if len(buf) < SectorSize {
		return errors.ErrIO.WithMessage("buffer shorter than one sector")
	}

	offset := int64(n) * SectorSize
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return errors.ErrIO.WrapError(err)
	}

	written, err := d.stream.Write(buf[:SectorSize])
	if err != nil {
		return errors.ErrIO.WrapError(err)
	}
	if written != SectorSize {
		return errors.ErrIO.WithMessage("short write")
	}

	if flusher, ok := d.stream.(interface{ Sync() error }); ok {
		if err := flusher.Sync(); err != nil {
			return errors.ErrIO.WrapError(err)
		}
	}
	return nil
}

// Package cluster translates between cluster numbers and sector ranges and
// performs whole-cluster transfers on top of blockio. Cluster c >= 2 maps to
// absolute sector dataStart + (c-2)*sectorsPerCluster (see spec §4.2).
package cluster

import (
	"fat32disk/blockio"
	"fat32disk/errors"
)

// ID is a cluster number. Clusters 0 and 1 are never allocatable; valid data
// clusters begin at 2.
type ID uint32

// Stream is a cluster-level view over a blockio.Device, parameterized by the
// geometry of the image it's reading.
type Stream struct {
	device            *blockio.Device
	dataStart         uint32
	sectorsPerCluster uint32
}

// BytesPerCluster is a convenience accessor used by callers that need to
// size a cluster-sized buffer.
func (s *Stream) BytesPerCluster() int {
	return int(s.sectorsPerCluster) * blockio.SectorSize
}

// New builds a cluster stream over device, given the data region's starting
// sector and the number of sectors per cluster.
func New(device *blockio.Device, dataStart uint32, sectorsPerCluster uint32) *Stream {
	return &Stream{
		device:            device,
		dataStart:         dataStart,
		sectorsPerCluster: sectorsPerCluster,
	}
}

// ToSector returns the absolute sector at which cluster c begins.
func (s *Stream) ToSector(c ID) (uint32, error) {
	if c < 2 {
		return 0, errors.ErrBadArgument.WithMessage("cluster numbers below 2 are not addressable")
	}
	return s.dataStart + (uint32(c)-2)*s.sectorsPerCluster, nil
}

// ReadCluster reads one whole cluster into buf, which must be at least
// BytesPerCluster() bytes.
func (s *Stream) ReadCluster(c ID, buf []byte) error {
	if len(buf) < s.BytesPerCluster() {
		return errors.ErrIO.WithMessage("buffer shorter than one cluster")
	}

	firstSector, err := s.ToSector(c)
	if err != nil {
		return err
	}

	for i := uint32(0); i < s.sectorsPerCluster; i++ {
		start := int(i) * blockio.SectorSize
		end := start + blockio.SectorSize
		if err := s.device.ReadSector(firstSector+i, buf[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// WriteCluster writes one whole cluster from data, which must be exactly
// BytesPerCluster() bytes; no partial-cluster writes are permitted.
func (s *Stream) WriteCluster(c ID, data []byte) error {
	if len(data) != s.BytesPerCluster() {
		return errors.ErrIO.WithMessage("data must be exactly one cluster in size")
	}

	firstSector, err := s.ToSector(c)
	if err != nil {
		return err
	}

	for i := uint32(0); i < s.sectorsPerCluster; i++ {
		start := int(i) * blockio.SectorSize
		end := start + blockio.SectorSize
		if err := s.device.WriteSector(firstSector+i, data[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// ClearCluster zero-fills cluster c.
func (s *Stream) ClearCluster(c ID) error {
	zero := make([]byte, s.BytesPerCluster())
	return s.WriteCluster(c, zero)
}

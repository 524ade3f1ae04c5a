// Package fat implements the File Allocation Table: 28-bit entries packed
// into 32-bit little-endian slots, mirrored across two identical FAT copies,
// with a linear find-first-free scan (spec §4.3).
package fat

import (
	"encoding/binary"

	"github.com/boljen/go-bitmap"

	"fat32disk/blockio"
	"fat32disk/cluster"
	"fat32disk/diag"
	"fat32disk/errors"
)

const (
	entrySize = 4
	entryMask = 0x0FFFFFFF

	// MediaPlaceholder is the sentinel written to FAT entry 0 at format time.
	MediaPlaceholder = uint32(0x0FFFFFF8)
	// EndOfChain marks the last cluster of a chain.
	EndOfChain = uint32(0x0FFFFFFF)
	// Free marks an unallocated cluster.
	Free = uint32(0x00000000)

	entriesPerSector = blockio.SectorSize / entrySize
)

// Table is a view over the FAT region of an image. It knows the sector at
// which each FAT copy starts, the real on-disk sector span of a single copy,
// and how many clusters exist, but holds no state of its own between calls:
// every read/write goes straight to the device, and find-first-free rebuilds
// its scratch bitmap from scratch every time it runs (no free-list hint is
// ever persisted, per spec §4.3).
type Table struct {
	device         *blockio.Device
	fatStart       uint32
	fatCount       uint32
	sectorsPerCopy uint32
	totalClusters  uint32
	Diagnostics    diag.Channel
}

// New builds a FAT table view. fatStart is the first sector of FAT copy 0;
// fatCount is the number of mirrored copies (2, per spec §3); sectorsPerCopy
// is the real on-disk span of a single FAT copy (the boot sector's
// fat_size_32 field, bootsector.FATSize32) — the stride between copies, not
// a value derived from totalClusters, since the two can differ.
func New(device *blockio.Device, fatStart uint32, fatCount uint32, sectorsPerCopy uint32, totalClusters uint32) *Table {
	return &Table{
		device:         device,
		fatStart:       fatStart,
		fatCount:       fatCount,
		sectorsPerCopy: sectorsPerCopy,
		totalClusters:  totalClusters,
	}
}

func (t *Table) entryLocation(c cluster.ID) (sector uint32, offset int) {
	entryOffset := uint32(c) * entrySize
	return t.fatStart + entryOffset/blockio.SectorSize, int(entryOffset % blockio.SectorSize)
}

// ReadEntry returns the low 28 bits of FAT entry c. If c is beyond
// totalClusters it returns EndOfChain, per spec §4.3.
func (t *Table) ReadEntry(c cluster.ID) (uint32, error) {
	if uint32(c) >= t.totalClusters {
		return EndOfChain, nil
	}

	sector, offset := t.entryLocation(c)
	buf := make([]byte, blockio.SectorSize)
	if err := t.device.ReadSector(sector, buf); err != nil {
		return 0, err
	}

	raw := binary.LittleEndian.Uint32(buf[offset : offset+entrySize])
	return raw & entryMask, nil
}

// WriteEntry sets FAT entry c to v (only the low 28 bits are stored; the top
// 4 bits of the existing slot are preserved) and mirrors the write across
// every FAT copy. Mirroring is mandatory on every write (invariant 2).
func (t *Table) WriteEntry(c cluster.ID, v uint32) error {
	if uint32(c) >= t.totalClusters {
		return errors.ErrBadArgument.WithMessage("cluster number beyond total_clusters")
	}

	entryOffset := uint32(c) * entrySize
	sectorWithinCopy := entryOffset / blockio.SectorSize
	offset := int(entryOffset % blockio.SectorSize)

	buf := make([]byte, blockio.SectorSize)
	for copyIndex := uint32(0); copyIndex < t.fatCount; copyIndex++ {
		sector := t.fatStart + copyIndex*t.sectorsPerCopy + sectorWithinCopy

		if err := t.device.ReadSector(sector, buf); err != nil {
			return err
		}

		existing := binary.LittleEndian.Uint32(buf[offset : offset+entrySize])
		merged := (existing &^ entryMask) | (v & entryMask)
		binary.LittleEndian.PutUint32(buf[offset:offset+entrySize], merged)

		if err := t.device.WriteSector(sector, buf); err != nil {
			return err
		}
	}
	return nil
}

// FindFirstFree scans clusters [2, totalClusters) for the first one whose
// FAT entry is Free, and returns it. It returns 0 (the "none" sentinel) if
// the table is full. The scan is driven by a fresh go-bitmap built from the
// current contents of FAT copy 0; the bitmap is scratch state local to this
// call and is never written back or reused across calls.
func (t *Table) FindFirstFree() (cluster.ID, error) {
	presence := bitmap.New(int(t.totalClusters))

	for c := uint32(2); c < t.totalClusters; c++ {
		entry, err := t.ReadEntry(cluster.ID(c))
		if err != nil {
			return 0, err
		}
		presence.Set(int(c), entry != Free)
	}

	for c := 2; c < int(t.totalClusters); c++ {
		if !presence.Get(c) {
			t.Diagnostics.Printf("fat: first free cluster is %d", c)
			return cluster.ID(c), nil
		}
	}

	t.Diagnostics.Printf("fat: no free cluster in range [2, %d)", t.totalClusters)
	return 0, nil
}

// VerifyMirrors reads every FAT copy and confirms they are byte-for-byte
// identical (invariant 2). It's intended for tests and integrity checks, not
// the hot path.
func (t *Table) VerifyMirrors() error {
	first := make([]byte, blockio.SectorSize)
	other := make([]byte, blockio.SectorSize)

	for s := uint32(0); s < t.sectorsPerCopy; s++ {
		if err := t.device.ReadSector(t.fatStart+s, first); err != nil {
			return err
		}
		for copyIndex := uint32(1); copyIndex < t.fatCount; copyIndex++ {
			if err := t.device.ReadSector(t.fatStart+copyIndex*t.sectorsPerCopy+s, other); err != nil {
				return err
			}
			for i := range first {
				if first[i] != other[i] {
					return errors.ErrIO.WithMessage("FAT copies are not byte-equal")
				}
			}
		}
	}
	return nil
}

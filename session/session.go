// Package session implements the filesystem operations layer: format,
// mkdir, touch, cd, ls, and stat, driven against a single current-directory
// cursor (spec §4.6, §3 "Session cursor"). It is the orchestration point
// that ties blockio, cluster, fat, dirent, and bootsector together.
package session

import (
	"io"
	"os"
	"strings"

	"fat32disk/blockio"
	"fat32disk/bootsector"
	"fat32disk/cluster"
	"fat32disk/diag"
	"fat32disk/dirent"
	"fat32disk/errors"
	"fat32disk/fat"
)

// RootCluster is the cluster number of the filesystem's top-level
// directory.
const RootCluster = cluster.ID(bootsector.RootCluster)

// rootParentCluster is the convention used for the root directory's ".."
// entry: root has no parent, so it points to cluster 0.
const rootParentCluster = 0

// Info is a read-only summary of a mounted image, exposed by the `info`
// shell command. It's pure plumbing over FindFirstFree-style FAT scanning;
// it introduces no new on-disk structure (spec §4.6 "stat" expansion).
type Info struct {
	TotalClusters uint32
	FreeClusters  uint32
	CurrentPath   string
}

// Session is the owned, threaded-through state for one shell invocation: the
// image path, its open handle, cached geometry, and the current-directory
// cursor. There is no ambient/global state; every operation is a method on
// a *Session (spec §9 "global-mutable session").
type Session struct {
	path   string
	handle io.Closer
	device *blockio.Device

	geometry bootsector.Geometry

	currentCluster cluster.ID
	currentPath    string

	fatTable *fat.Table
	clusters *cluster.Stream

	Diagnostics diag.Channel
}

// Open opens (creating if necessary) the image at path, ensures it is
// exactly ImageBytes long (invariant 6 holds for the duration of the
// session starting here), and returns a Session positioned at "/" with no
// assumption about whether the image has been formatted yet.
func Open(path string) (*Session, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.ErrIO.WrapError(err)
	}

	if err := ensureImageSize(f); err != nil {
		f.Close()
		return nil, err
	}

	return newSession(path, f, f), nil
}

// OpenStream builds a Session directly over an already-open
// io.ReadWriteSeeker, without touching the filesystem. It's used by tests
// to back a session with an in-memory image (see disktest).
func OpenStream(path string, stream io.ReadWriteSeeker, closer io.Closer) *Session {
	return newSession(path, stream, closer)
}

func newSession(path string, stream io.ReadWriteSeeker, closer io.Closer) *Session {
	return &Session{
		path:           path,
		handle:         closer,
		device:         blockio.New(stream),
		currentCluster: RootCluster,
		currentPath:    "/",
	}
}

func ensureImageSize(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return errors.ErrIO.WrapError(err)
	}
	if info.Size() != bootsector.ImageBytes {
		if err := f.Truncate(bootsector.ImageBytes); err != nil {
			return errors.ErrIO.WrapError(err)
		}
	}
	return nil
}

// Close releases the session's image handle.
func (s *Session) Close() error {
	if s.handle == nil {
		return nil
	}
	if err := s.handle.Close(); err != nil {
		return errors.ErrIO.WrapError(err)
	}
	return nil
}

// CurrentPath returns the session cursor's path string.
func (s *Session) CurrentPath() string {
	return s.currentPath
}

// CurrentCluster returns the session cursor's cluster number.
func (s *Session) CurrentCluster() cluster.ID {
	return s.currentCluster
}

// refreshGeometry rebuilds the cached geometry and the fat/cluster views
// from the boot sector currently on disk. It recomputes everything from the
// boot sector's own fields rather than hard-coded constants, so a validly
// formatted image dictates its own layout (spec §4.4).
func (s *Session) refreshGeometry(raw *bootsector.Raw) {
	s.geometry = bootsector.Derive(raw)
	s.clusters = cluster.New(s.device, s.geometry.DataStart, uint32(raw.SectorsPerClstr))
	s.fatTable = fat.New(s.device, s.geometry.FATStart, uint32(raw.NumFATs), raw.FATSize32, s.geometry.TotalClusters)
	s.fatTable.Diagnostics = s.Diagnostics
}

// EnsureValid reads the boot sector and confirms it describes a formatted
// FAT32 image (signature and fs_type), caching geometry on success. Every
// operation except Format calls this first.
func (s *Session) EnsureValid() error {
	raw, err := bootsector.ReadFrom(s.device)
	if err != nil {
		return err
	}
	if err := bootsector.ValidateAll(&raw); err != nil {
		return err
	}
	s.refreshGeometry(&raw)
	return nil
}

// Format unconditionally rewrites the boot sector, both FAT copies, and the
// root directory cluster, per spec §4.4. It is the sole operation that does
// not require EnsureValid to have already succeeded; it creates validity.
func (s *Session) Format() error {
	raw := bootsector.Build("")
	if err := bootsector.WriteTo(s.device, &raw); err != nil {
		return err
	}
	s.refreshGeometry(&raw)

	if err := s.formatFAT(); err != nil {
		return err
	}
	if err := s.formatRoot(); err != nil {
		return err
	}

	s.currentCluster = RootCluster
	s.currentPath = "/"
	return nil
}

func (s *Session) formatFAT() error {
	// Entry 0 gets the media-type placeholder, entry 1 the EOC sentinel;
	// every other entry is left at Free. WriteEntry mirrors every write
	// across both FAT copies, so looping here satisfies invariant 2 for
	// free.
	if err := s.fatTable.WriteEntry(0, fat.MediaPlaceholder); err != nil {
		return err
	}
	if err := s.fatTable.WriteEntry(1, fat.EndOfChain); err != nil {
		return err
	}
	for c := uint32(2); c < s.geometry.TotalClusters; c++ {
		if err := s.fatTable.WriteEntry(cluster.ID(c), fat.Free); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) formatRoot() error {
	buf := make([]byte, s.clusters.BytesPerCluster())

	dot := dirent.Raw{AttributeFlags: dirent.AttrDirectory, Name: dirent.FormatName(".")}
	dot.SetCluster(uint32(RootCluster))
	if err := dirent.WriteEntryAt(buf, 0, &dot); err != nil {
		return err
	}

	dotdot := dirent.Raw{AttributeFlags: dirent.AttrDirectory, Name: dirent.FormatName("..")}
	dotdot.SetCluster(rootParentCluster)
	if err := dirent.WriteEntryAt(buf, 1, &dotdot); err != nil {
		return err
	}

	if err := s.clusters.WriteCluster(RootCluster, buf); err != nil {
		return err
	}
	return s.fatTable.WriteEntry(RootCluster, fat.EndOfChain)
}

// readCurrentDir reads the cluster the cursor currently points at.
func (s *Session) readCurrentDir() ([]byte, error) {
	buf := make([]byte, s.clusters.BytesPerCluster())
	if err := s.clusters.ReadCluster(s.currentCluster, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Mkdir creates a subdirectory named name under the current directory.
// Ordering matters: the child cluster is committed before the parent's
// directory entry is written, so a crash mid-operation leaves, at worst, an
// orphan cluster rather than a dangling reference (spec §4.6, §7).
func (s *Session) Mkdir(name string) error {
	if err := s.EnsureValid(); err != nil {
		return err
	}
	if name == "" {
		return errors.ErrBadArgument.WithMessage("name must not be empty")
	}

	normalized := dirent.FormatName(name)
	dirData, err := s.readCurrentDir()
	if err != nil {
		return err
	}

	collides, err := dirent.FindCollision(dirData, normalized, &s.Diagnostics)
	if err != nil {
		return err
	}
	if collides {
		return errors.ErrNameExists.WithMessage(name)
	}

	slot, err := dirent.FindFreeSlot(dirData, &s.Diagnostics)
	if err != nil {
		return err
	}

	newCluster, err := s.fatTable.FindFirstFree()
	if err != nil {
		return err
	}
	if newCluster == 0 {
		return errors.ErrOutOfSpace.WithMessage("no free cluster for new directory")
	}

	childBuf := make([]byte, s.clusters.BytesPerCluster())
	dot := dirent.Raw{AttributeFlags: dirent.AttrDirectory, Name: dirent.FormatName(".")}
	dot.SetCluster(uint32(newCluster))
	if err := dirent.WriteEntryAt(childBuf, 0, &dot); err != nil {
		return err
	}
	dotdot := dirent.Raw{AttributeFlags: dirent.AttrDirectory, Name: dirent.FormatName("..")}
	dotdot.SetCluster(uint32(s.currentCluster))
	if err := dirent.WriteEntryAt(childBuf, 1, &dotdot); err != nil {
		return err
	}

	if err := s.clusters.WriteCluster(newCluster, childBuf); err != nil {
		return err
	}
	if err := s.fatTable.WriteEntry(newCluster, fat.EndOfChain); err != nil {
		return err
	}

	parentEntry := dirent.Raw{AttributeFlags: dirent.AttrDirectory, Name: normalized}
	parentEntry.SetCluster(uint32(newCluster))
	if err := dirent.WriteEntryAt(dirData, slot, &parentEntry); err != nil {
		return err
	}
	return s.clusters.WriteCluster(s.currentCluster, dirData)
}

// Touch creates a zero-length file named name in the current directory. No
// cluster is allocated for it; empty files own no cluster (spec invariant
// 5, §4.6).
func (s *Session) Touch(name string) error {
	if err := s.EnsureValid(); err != nil {
		return err
	}
	if name == "" {
		return errors.ErrBadArgument.WithMessage("name must not be empty")
	}

	normalized := dirent.FormatName(name)
	dirData, err := s.readCurrentDir()
	if err != nil {
		return err
	}

	collides, err := dirent.FindCollision(dirData, normalized, &s.Diagnostics)
	if err != nil {
		return err
	}
	if collides {
		return errors.ErrNameExists.WithMessage(name)
	}

	slot, err := dirent.FindFreeSlot(dirData, &s.Diagnostics)
	if err != nil {
		return err
	}

	entry := dirent.Raw{AttributeFlags: dirent.AttrArchive, Name: normalized, FileSize: 0}
	entry.SetCluster(0)
	if err := dirent.WriteEntryAt(dirData, slot, &entry); err != nil {
		return err
	}
	return s.clusters.WriteCluster(s.currentCluster, dirData)
}

// Cd changes the current directory, per the rules and the documented
// path-replacement quirk in spec §4.6, §9: a successful single-component
// `cd /<name>` replaces the cursor's path string instead of appending to
// it, so deep navigation is effectively one level. This is preserved
// verbatim (see SPEC_FULL.md Open Question resolutions).
func (s *Session) Cd(path string) error {
	if err := s.EnsureValid(); err != nil {
		return err
	}
	if !strings.HasPrefix(path, "/") {
		return errors.ErrBadArgument.WithMessage("cd path must be absolute")
	}

	switch path {
	case "/":
		s.currentCluster = RootCluster
		s.currentPath = "/"
		return nil
	case "/.":
		return nil
	case "/..":
		return s.cdUp()
	}

	rest := path[1:]
	if strings.Contains(rest, "/") {
		return errors.ErrUnsupported.WithMessage("multi-level paths are not supported")
	}

	return s.cdChild(rest)
}

func (s *Session) cdUp() error {
	if s.currentCluster == RootCluster {
		return nil
	}

	dirData, err := s.readCurrentDir()
	if err != nil {
		return err
	}

	entries, err := dirent.Scan(dirData)
	if err != nil {
		return err
	}

	dotdot := dirent.FormatName("..")
	for _, e := range entries {
		if e.Raw.Name == dotdot {
			s.currentCluster = cluster.ID(e.Raw.Cluster())
			s.popPathComponent()
			return nil
		}
	}
	return errors.ErrNotFound.WithMessage("\"..\" entry missing from current directory")
}

func (s *Session) popPathComponent() {
	if s.currentPath == "/" {
		return
	}
	idx := strings.LastIndex(s.currentPath, "/")
	if idx <= 0 {
		s.currentPath = "/"
		return
	}
	s.currentPath = s.currentPath[:idx]
}

func (s *Session) cdChild(name string) error {
	normalized := dirent.FormatName(name)

	dirData, err := s.readCurrentDir()
	if err != nil {
		return err
	}

	entries, err := dirent.Scan(dirData)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.Raw.Name == normalized && e.Raw.IsDirectory() {
			s.currentCluster = cluster.ID(e.Raw.Cluster())
			// Known limitation, preserved verbatim: this replaces the path
			// rather than appending to it, so the cursor can't actually
			// express nested depth beyond one level (spec §9).
			s.currentPath = "/" + name
			return nil
		}
	}
	return errors.ErrNotFound.WithMessage(name)
}

// Ls lists the directory named by path. A nil/empty path lists the current
// directory. "/" lists the root. A single-component absolute path attempts
// one-level resolution under root; on failure it silently falls back to
// listing the current directory, matching the source's fallback behavior
// (spec §4.6).
func (s *Session) Ls(path string) ([]string, error) {
	if err := s.EnsureValid(); err != nil {
		return nil, err
	}

	target := s.currentCluster
	switch {
	case path == "":
		// listing current directory, already set above
	case path == "/":
		target = RootCluster
	case strings.HasPrefix(path, "/"):
		rest := path[1:]
		if rest != "" && !strings.Contains(rest, "/") {
			if c, ok := s.resolveUnderRoot(rest); ok {
				target = c
			}
			// else: fall back to current directory, per source behavior.
		}
	}

	buf := make([]byte, s.clusters.BytesPerCluster())
	if err := s.clusters.ReadCluster(target, buf); err != nil {
		return nil, err
	}

	entries, err := dirent.Scan(buf)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, formatListingLine(e.Raw.Name))
	}
	return lines, nil
}

func (s *Session) resolveUnderRoot(name string) (cluster.ID, bool) {
	normalized := dirent.FormatName(name)

	buf := make([]byte, s.clusters.BytesPerCluster())
	if err := s.clusters.ReadCluster(RootCluster, buf); err != nil {
		return 0, false
	}

	entries, err := dirent.Scan(buf)
	if err != nil {
		return 0, false
	}

	for _, e := range entries {
		if e.Raw.Name == normalized && e.Raw.IsDirectory() {
			return cluster.ID(e.Raw.Cluster()), true
		}
	}
	return 0, false
}

// formatListingLine renders one 11-byte on-disk name for `ls`: the 8-byte
// base has trailing spaces stripped; if byte 8 is not a space, "." plus the
// trimmed 3-byte extension is appended. No directory-suffix marker is ever
// added (spec §4.6).
func formatListingLine(name [11]byte) string {
	base := strings.TrimRight(string(name[0:8]), " ")
	if name[8] == ' ' {
		return base
	}
	ext := strings.TrimRight(string(name[8:11]), " ")
	return base + "." + ext
}

// Stat returns a read-only summary of the mounted image: total clusters,
// free clusters, and the current path (spec §4.6 "stat" expansion in
// SPEC_FULL.md). Free cluster count reuses the same linear FAT scan as
// FindFirstFree, but counts rather than stopping at the first hit.
func (s *Session) Stat() (Info, error) {
	if err := s.EnsureValid(); err != nil {
		return Info{}, err
	}

	var free uint32
	for c := uint32(2); c < s.geometry.TotalClusters; c++ {
		entry, err := s.fatTable.ReadEntry(cluster.ID(c))
		if err != nil {
			return Info{}, err
		}
		if entry == fat.Free {
			free++
		}
	}

	return Info{
		TotalClusters: s.geometry.TotalClusters,
		FreeClusters:  free,
		CurrentPath:   s.currentPath,
	}, nil
}

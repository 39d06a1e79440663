package romfile

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

var ErrEmptyArchive = errors.New("archive has no entries")

// openRomReader opens the ROM content of path. Plain files are returned as
// is; for zip/7z/rar archives the first regular entry is returned, since
// DAT checksums are computed over the dump inside the archive.
func openRomReader(path string) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return openZipEntry(path)
	case ".7z":
		return openSevenZipEntry(path)
	case ".rar":
		return openRarEntry(path)
	default:
		return os.Open(path)
	}
}

type archiveEntry struct {
	io.Reader
	closers []io.Closer
}

func (e *archiveEntry) Close() error {
	var err error
	for _, c := range e.closers {
		err = errors.Join(err, c.Close())
	}
	return err
}

func openZipEntry(path string) (io.ReadCloser, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	for _, f := range archive.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = archive.Close()
			return nil, err
		}
		return &archiveEntry{Reader: rc, closers: []io.Closer{rc, archive}}, nil
	}
	_ = archive.Close()
	return nil, ErrEmptyArchive
}

func openSevenZipEntry(path string) (io.ReadCloser, error) {
	archive, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	for _, f := range archive.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = archive.Close()
			return nil, err
		}
		return &archiveEntry{Reader: rc, closers: []io.Closer{rc, archive}}, nil
	}
	_ = archive.Close()
	return nil, ErrEmptyArchive
}

func openRarEntry(path string) (io.ReadCloser, error) {
	archive, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, err
	}
	for {
		header, err := archive.Next()
		if err == io.EOF {
			_ = archive.Close()
			return nil, ErrEmptyArchive
		}
		if err != nil {
			_ = archive.Close()
			return nil, err
		}
		if header.IsDir {
			continue
		}
		return &archiveEntry{Reader: archive, closers: []io.Closer{archive}}, nil
	}
}

package romfile

import (
	"crypto/md5"
	"crypto/sha1"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/cespare/xxhash"
)

// Hashes holds the three checksums used for canonical ROM identity,
// as lowercase hex strings.
type Hashes struct {
	CRC32 string
	MD5   string
	SHA1  string
}

// ComputeHashes reads r once and returns CRC32, MD5 and SHA1.
// Memory use is bounded regardless of input size.
func ComputeHashes(r io.Reader) (Hashes, error) {
	crc := crc32.NewIEEE()
	md := md5.New()
	sha := sha1.New()

	if _, err := io.Copy(io.MultiWriter(crc, md, sha), r); err != nil {
		return Hashes{}, err
	}

	return Hashes{
		CRC32: fmt.Sprintf("%08x", crc.Sum32()),
		MD5:   fmt.Sprintf("%x", md.Sum(nil)),
		SHA1:  fmt.Sprintf("%x", sha.Sum(nil)),
	}, nil
}

// ComputeFileHashes hashes the ROM content of the file at path. For
// archives (.zip, .7z, .rar) the first ROM entry inside is hashed, matching
// how reference checksum databases record dumps.
func ComputeFileHashes(path string) (Hashes, error) {
	var err error
	rc, err := openRomReader(path)
	if err != nil {
		return Hashes{}, err
	}

	defer func() {
		closeErr := rc.Close()
		err = errors.Join(err, closeErr)
	}()

	var hashes Hashes
	hashes, err = ComputeHashes(rc)

	return hashes, err
}

// QuickHash returns a cheap xxhash fingerprint of the raw file bytes. It is
// used for change detection only, never for identity.
func QuickHash(path string) (uint64, error) {
	var err error
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}

	defer func() {
		closeErr := file.Close()
		err = errors.Join(err, closeErr)
	}()

	hash := xxhash.New()
	_, err = io.Copy(hash, file)

	return hash.Sum64(), err
}

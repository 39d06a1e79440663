package romfile

import (
	"context"
	"encoding/binary"
	"io/fs"
	"path/filepath"

	"github.com/cespare/xxhash"
)

// WatchFile watches a file for content changes and emits on the returned
// channel when it changes. Polling is driven by the caller's ticker.
func WatchFile(ctx context.Context, path string, ticker <-chan struct{}, onErr func(err error)) (chan struct{}, error) {
	lastHash, err := QuickHash(path)
	if err != nil {
		return nil, err
	}
	return watch(ctx, ticker, lastHash, func() (uint64, error) { return QuickHash(path) }, onErr), nil
}

// WatchTree watches a directory tree for shape changes (file added, removed,
// renamed, resized or touched) and emits when the manifest changes. File
// contents are not read; the manifest hashes paths, sizes and mtimes.
func WatchTree(ctx context.Context, root string, ticker <-chan struct{}, onErr func(err error)) (chan struct{}, error) {
	lastHash, err := manifestHash(root)
	if err != nil {
		return nil, err
	}
	return watch(ctx, ticker, lastHash, func() (uint64, error) { return manifestHash(root) }, onErr), nil
}

func watch(ctx context.Context, ticker <-chan struct{}, lastHash uint64, rehash func() (uint64, error), onErr func(err error)) chan struct{} {
	ch := make(chan struct{})

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker:
				newHash, err := rehash()
				if err != nil {
					onErr(err)
				}
				if newHash != 0 &&
					lastHash != newHash {
					lastHash = newHash
					select {
					case ch <- struct{}{}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

func manifestHash(root string) (uint64, error) {
	hash := xxhash.New()
	var buf [8]byte
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		_, _ = hash.Write([]byte(path))
		binary.LittleEndian.PutUint64(buf[:], uint64(info.Size()))
		_, _ = hash.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(info.ModTime().UnixNano()))
		_, _ = hash.Write(buf[:])
		return nil
	})
	if err != nil {
		return 0, err
	}
	return hash.Sum64(), nil
}

// Package source provides adapters that turn a configured origin of ROM
// files into a lazy stream of observed records. Adapters have no knowledge
// of canonical identity and never write to the catalog.
package source

import (
	"context"
	"iter"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/job"
)

// ObservedRom is one file as seen at a source. Hashes are only present when
// the source already knows them (a remote catalog reporting checksums);
// local files are hashed later by the sync pipeline.
type ObservedRom struct {
	PlatformSlug string
	Name         string
	FileName     string
	Path         string
	Size         *int64
	RemoteID     string
	RemoteURL    string
	HashMD5      string
	Regions      []string
	Meta         string
}

func (o ObservedRom) MarshalZerologObject(e *zerolog.Event) {
	e.Str("platform", o.PlatformSlug)
	e.Str("file_name", o.FileName)
	if o.Path != "" {
		e.Str("path", o.Path)
	}
	if o.RemoteID != "" {
		e.Str("remote_id", o.RemoteID)
	}
}

// TestResult is what a connection test discovers without persisting.
type TestResult struct {
	PlatformCount int
	RomCount      int64
	Detail        string
}

// Adapter is the shared contract of all source kinds. List returns a fresh,
// restartable listing per call; the sequence stops early when ctx is
// cancelled. Individual unreadable items are skipped and logged. A failure
// that cuts the listing short is yielded as the final pair's error, so
// consumers can tell a complete listing from a truncated one; a failure
// before any item can be produced is returned from List itself.
type Adapter interface {
	Name() string
	List(ctx context.Context, sink job.Sink) (iter.Seq2[ObservedRom, error], error)
	TestConnection(ctx context.Context) (TestResult, error)
}

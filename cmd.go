package main

import "github.com/romkeeper/romkeeper/config"

type Command struct {
	Version struct{} `cmd:"" help:"Print version information."`
	Sync    struct {
		Database    string              `help:"database path" short:"d" required:""`
		Source      string              `help:"only sync the source with this name"`
		MaxHashSize config.SizeArgument `help:"skip hashing files larger than this (e.g. 4GB)"`
	} `cmd:"" help:"Scan configured sources and reconcile the catalog."`
	Verify struct {
		Database string `help:"database path" short:"d" required:""`
		Platform string `help:"platform slug, every platform with roms when omitted" short:"p"`
	} `cmd:"" help:"Verify roms against imported DAT checksums."`
	Dat struct {
		Import struct {
			Database string `help:"database path" short:"d" required:""`
			File     string `help:"DAT file path" short:"f" required:""`
			Platform string `help:"platform slug, auto-detected from the DAT header when omitted" short:"p"`
		} `cmd:"" help:"Import a No-Intro or Redump DAT file."`
		Detect struct {
			File string `help:"DAT file path" short:"f" required:""`
		} `cmd:"" help:"Show what platform a DAT file maps to."`
	} `cmd:"" help:"Manage reference checksum databases."`
	Enrich struct {
		Database string `help:"database path" short:"d" required:""`
		Config   string `help:"config file path with provider credentials" short:"c"`
		Platform string `help:"platform slug, every platform with roms when omitted" short:"p"`
		Search   string `help:"only enrich roms matching this search query" short:"q"`
		All      bool   `help:"re-enrich roms that already have metadata"`
		Rom      int64  `help:"force-refresh a single rom by id, ignoring cached provider responses"`
	} `cmd:"" help:"Fetch game metadata from external providers."`
	LaunchboxImport struct {
		Database string `help:"database path" short:"d" required:""`
	} `cmd:"" name:"launchbox-import" help:"Download and import the offline LaunchBox dataset."`
	Sources struct {
		Add struct {
			Database string `help:"database path" short:"d" required:""`
			Name     string `help:"source name" required:""`
			Type     string `help:"source type" enum:"local,romm" required:""`
			Path     string `help:"directory path for local sources"`
			URL      string `help:"server url for romm sources"`
			Username string `help:"server username"`
			Password string `help:"server password"`
		} `cmd:"" help:"Add a source."`
		List struct {
			Database string `help:"database path" short:"d" required:""`
		} `cmd:"" help:"List configured sources."`
		Update struct {
			Database string `help:"database path" short:"d" required:""`
			ID       int64  `help:"source id" required:""`
			Name     string `help:"new source name"`
			Path     string `help:"new directory path for local sources"`
			URL      string `help:"new server url for romm sources"`
			Enable   bool   `help:"enable the source"`
			Disable  bool   `help:"disable the source"`
		} `cmd:"" help:"Update a source's settings."`
		Credentials struct {
			Database string `help:"database path" short:"d" required:""`
			ID       int64  `help:"source id" required:""`
			Show     bool   `help:"print the stored credentials"`
			Username string `help:"new server username"`
			Password string `help:"new server password"`
		} `cmd:"" help:"Show or rotate a source's credentials."`
		Remove struct {
			Database string `help:"database path" short:"d" required:""`
			ID       int64  `help:"source id" required:""`
			Purge    bool   `help:"also delete roms left without any source"`
		} `cmd:"" help:"Remove a source."`
		Test struct {
			Database string `help:"database path" short:"d" required:""`
			ID       int64  `help:"source id" required:""`
		} `cmd:"" help:"Test a source without touching the catalog."`
	} `cmd:"" help:"Manage rom sources."`
	Search struct {
		Database string `help:"database path" short:"d" required:""`
		Query    string `help:"search terms" short:"q"`
		Platform string `help:"platform slug" short:"p"`
	} `cmd:"" help:"Search the catalog."`
	Daemon struct {
		Config   string `help:"config file path" short:"c" required:""`
		Database string `help:"database path" short:"d" required:""`
	} `cmd:"" help:"Run the catalog service."`
}

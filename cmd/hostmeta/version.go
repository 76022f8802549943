package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hostmeta/internal/ledger"
	"hostmeta/internal/resolved"
	"hostmeta/internal/version"
)

// versionPayload describes the build and the on-disk formats it reads and
// writes, so a ledger can be matched to the binary that produced it.
type versionPayload struct {
	Tool         string   `json:"tool"`
	Version      string   `json:"version"`
	LedgerSchema uint16   `json:"ledger_schema"`
	LedgerCodecs []string `json:"ledger_codecs"`
	CacheSlots   int      `json:"method_cache_slots"`
	Commit       string   `json:"git_commit,omitempty"`
	Message      string   `json:"git_message,omitempty"`
	Built        string   `json:"build_date,omitempty"`
}

var (
	versionFormat string
	versionBuild  bool
)

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().BoolVar(&versionBuild, "build", false, "include git commit and build date")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the hostmeta version and the ledger schema it writes",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := collectVersion(versionBuild)
		switch strings.ToLower(versionFormat) {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		case "pretty":
			renderVersion(cmd.OutOrStdout(), p)
			return nil
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
	},
}

func collectVersion(build bool) versionPayload {
	p := versionPayload{
		Tool:         "hostmeta",
		Version:      strings.TrimSpace(version.Version),
		LedgerSchema: ledger.SchemaVersion,
		LedgerCodecs: []string{ledger.CodecMsgpack.String(), ledger.CodecCBOR.String()},
		CacheSlots:   resolved.DefaultMethodCacheSlots,
	}
	if p.Version == "" {
		p.Version = "dev"
	}
	if build {
		p.Commit = orUnknown(version.GitCommit)
		p.Message = orUnknown(version.GitMessage)
		p.Built = orUnknown(version.BuildDate)
	}
	return p
}

func renderVersion(out io.Writer, p versionPayload) {
	fmt.Fprintf(out, "hostmeta %s\n", version.Colorize(p.Version))
	kv := newKV(out, "ledger schema", "ledger codecs", "cache slots", "commit", "message", "built")
	kv.row("ledger schema", fmt.Sprint(p.LedgerSchema))
	kv.row("ledger codecs", strings.Join(p.LedgerCodecs, ", "))
	kv.row("cache slots", fmt.Sprint(p.CacheSlots))
	if p.Commit != "" {
		kv.row("commit", p.Commit)
		kv.row("message", p.Message)
		kv.row("built", p.Built)
	}
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}

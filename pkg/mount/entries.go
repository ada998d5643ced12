package mount

import (
	"bufio"
	"strings"

	"github.com/moby/sys/mountinfo"
	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/emmc-mount-check/pkg/utils"
)

// ParseEntries extracts mount table entries from captured shell output.
// Lines in /proc/mounts form and in `mount` form are recognized; anything
// else (prompts, echoed commands, df output) is skipped. An entry that
// appears in both forms is returned once.
//
// /proc/mounts: SOURCE TARGET FSTYPE OPTIONS DUMP PASS
// mount:        SOURCE on TARGET type FSTYPE (OPTIONS)
func ParseEntries(output string) []*mountinfo.Info {
	var entries []*mountinfo.Info
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimRight(scanner.Text(), "\r"))

		entry, ok := parseEntryLine(line)
		if !ok {
			klog.V(5).Infof("Skipping non-mount line: %q", line)
			continue
		}

		key := entry.Source + " " + entry.Mountpoint + " " + entry.FSType
		if seen[key] {
			continue
		}
		seen[key] = true

		klog.V(5).Infof("Parsed mount entry: %s on %s type %s", entry.Source, entry.Mountpoint, entry.FSType)
		entries = append(entries, entry)
	}

	// bufio.Scanner over a string only fails on overlong lines; keep what we have
	if err := scanner.Err(); err != nil {
		klog.V(4).Infof("Stopped parsing mount entries: %v", err)
	}

	return entries
}

// parseEntryLine parses a single mount table line in either supported form
func parseEntryLine(line string) (*mountinfo.Info, bool) {
	if m := utils.MountCommandLinePattern.FindStringSubmatch(line); m != nil {
		return &mountinfo.Info{
			Source:     unescapePath(m[1]),
			Mountpoint: unescapePath(m[2]),
			FSType:     m[3],
			Options:    m[4],
		}, true
	}

	if m := utils.ProcMountsLinePattern.FindStringSubmatch(line); m != nil {
		return &mountinfo.Info{
			Source:     unescapePath(m[1]),
			Mountpoint: unescapePath(m[2]),
			FSType:     m[3],
			Options:    m[4],
		}, true
	}

	return nil, false
}

// unescapePath handles escaped characters in mount paths
// Spaces are encoded as \040, tabs as \011, newlines as \012, backslashes as \134
func unescapePath(path string) string {
	replacer := strings.NewReplacer(
		`\040`, " ", // space
		`\011`, "\t", // tab
		`\012`, "\n", // newline
		`\134`, `\`, // backslash
	)
	return replacer.Replace(path)
}

// FilterEntries applies a mountinfo filter to parsed entries, the same way
// mountinfo.GetMounts applies it to the local mount table.
func FilterEntries(entries []*mountinfo.Info, filter mountinfo.FilterFunc) []*mountinfo.Info {
	if filter == nil {
		return entries
	}

	var out []*mountinfo.Info
	for _, e := range entries {
		skip, stop := filter(e)
		if !skip {
			out = append(out, e)
		}
		if stop {
			break
		}
	}
	return out
}

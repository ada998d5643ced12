package mount

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/moby/sys/mountinfo"
	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/emmc-mount-check/pkg/utils"
)

// Kind is the class of a mount result.
type Kind int

const (
	KindUnknown Kind = iota
	KindYes
	KindNo
	KindError
)

// String returns the label used for metrics.
func (k Kind) String() string {
	switch k {
	case KindYes:
		return "yes"
	case KindNo:
		return "no"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the outcome of classifying one transcript.
type Result struct {
	Kind Kind

	// Text is what goes to the check log: Yes, No, Unknown (...) or Error: ...
	Text string

	// Pattern is the network filesystem pattern that matched, if any
	Pattern string

	// Entries are mount table lines for the mount path found in the output
	Entries []*mountinfo.Info
}

func (r Result) String() string {
	return r.Text
}

// ErrorResult builds the result recorded when the session failed. Secrets
// are removed from the message.
func ErrorResult(err error, secrets ...string) Result {
	return Result{
		Kind: KindError,
		Text: "Error: " + utils.ErrorMessage(err, secrets...),
	}
}

// Classifier decides whether a mount path is backed by a network filesystem.
type Classifier struct {
	mountPath string
	marker    string
	patterns  []*regexp.Regexp
}

// NewClassifier creates a classifier for mountPath. marker is the literal
// that shows the mount point was mentioned at all.
func NewClassifier(mountPath, marker string) *Classifier {
	return &Classifier{
		mountPath: mountPath,
		marker:    marker,
		patterns:  utils.NFSPatterns(),
	}
}

// Classify applies the network filesystem patterns in order; the first match
// yields Yes. Otherwise the marker yields No, and its absence Unknown.
//
// Patterns match anywhere in output, so an echoed command line containing a
// pattern classifies as Yes too.
func (c *Classifier) Classify(output string) Result {
	res := Result{
		Entries: FilterEntries(ParseEntries(output), mountinfo.SingleEntryFilter(c.mountPath)),
	}

	for _, p := range c.patterns {
		if p.MatchString(output) {
			res.Kind = KindYes
			res.Text = "Yes"
			res.Pattern = p.String()
			break
		}
	}

	if res.Kind != KindYes {
		if strings.Contains(output, c.marker) {
			res.Kind = KindNo
			res.Text = "No"
		} else {
			res.Kind = KindUnknown
			res.Text = fmt.Sprintf("Unknown (%s not found)", c.mountPath)
		}
	}

	if res.Pattern != "" {
		klog.V(2).Infof("Classified %s as %s (pattern %s)", c.mountPath, res.Text, res.Pattern)
	} else {
		klog.V(2).Infof("Classified %s as %s", c.mountPath, res.Text)
	}
	for _, e := range res.Entries {
		klog.V(2).Infof("Mount entry for %s: source=%s fstype=%s options=%s", e.Mountpoint, e.Source, e.FSType, e.Options)
	}

	return res
}

package job

import (
	"fmt"
	"regexp"
)

// tagKeyPattern matches the wire form of a DICOM tag: two 4-hex-digit
// groups separated by a comma, e.g. "0010,0010".
var tagKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{4},[0-9a-fA-F]{4}$`)

// TagKey is a caller-supplied DICOM tag key, validated at ingestion.
type TagKey string

func (k TagKey) Validate() error {
	if !tagKeyPattern.MatchString(string(k)) {
		return fmt.Errorf("invalid tag key %q: expected two 4-hex-digit groups separated by a comma", string(k))
	}
	return nil
}

// TagSet maps validated tag keys to their string values. Values are opaque
// to the pipeline; only key syntax is checked.
type TagSet map[TagKey]string

// NewTagSet validates the supplied key/value pairs. Duplicate keys and
// malformed keys are construction failures.
func NewTagSet(pairs []TagPair) (TagSet, error) {
	tags := make(TagSet, len(pairs))
	for _, p := range pairs {
		key := TagKey(p.Key)
		if err := key.Validate(); err != nil {
			return nil, err
		}
		if _, dup := tags[key]; dup {
			return nil, fmt.Errorf("duplicate tag key %q", p.Key)
		}
		tags[key] = p.Value
	}
	return tags, nil
}

// MergeOver lays the set over the given defaults. Supplied values win on
// key collision.
func (t TagSet) MergeOver(defaults TagSet) TagSet {
	merged := make(TagSet, len(defaults)+len(t))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range t {
		merged[k] = v
	}
	return merged
}

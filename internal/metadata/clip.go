package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clipNamePattern = regexp.MustCompile(`^D(\d+)_S(\d+)_([^.]+)\.mp3$`)

// ClipName builds the speech clip file name for a line, e.g. D0_S3_morty.mp3.
func ClipName(dialogue, line int, speakerName string) string {
	return fmt.Sprintf("D%d_S%d_%s.mp3", dialogue, line, strings.ToLower(speakerName))
}

// ParseClipName reverses ClipName.
func ParseClipName(name string) (dialogue, line int, speakerName string, err error) {
	m := clipNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, "", fmt.Errorf("invalid clip name %q", name)
	}
	dialogue, _ = strconv.Atoi(m[1])
	line, _ = strconv.Atoi(m[2])
	return dialogue, line, m[3], nil
}

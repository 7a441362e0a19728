package utils

import (
	"crypto/md5"
	"fmt"
	"time"
)

// ComputeChecksum returns the raw MD5 checksum of a byte slice. Used to
// compare version contents without holding both trees.
func ComputeChecksum(content []byte) []byte {
	hash := md5.New()
	hash.Write(content)
	return hash.Sum(nil)
}

// FormatRelativeTime renders a timestamp the way version history lists
// it: "Just now", "5m ago", "3h ago", then calendar dates.
func FormatRelativeTime(t time.Time, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

// FormatTime12Hour renders a timestamp as a 12-hour clock time, e.g.
// "3:04 PM".
func FormatTime12Hour(t time.Time) string {
	return t.Format("3:04 PM")
}

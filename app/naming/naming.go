// Package naming parses the conventions embedded in upload identifiers:
// session ids carry the session date, file names may carry a thumbnail
// marker and a time-of-day extension letter.
package naming

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// TimeBucket is the time-of-day posting window encoded as a single
// trailing letter in the file name, e.g. "0001-m.jpg".
type TimeBucket string

const (
	BucketNone      TimeBucket = ""
	BucketMorning   TimeBucket = "m"
	BucketAfternoon TimeBucket = "a"
	BucketEvening   TimeBucket = "e"
	BucketAllDay    TimeBucket = "l"
)

// ParseSessionDate extracts the calendar date from a session id such as
// "F(01-28-2025)_th10021994" or "F(Jan 28, 2025)_th10021994". Both the
// numeric and the textual month form are in active use.
func ParseSessionDate(sessionID string) (time.Time, error) {
	open := strings.Index(sessionID, "(")
	close := strings.Index(sessionID, ")")
	if open < 0 || close < 0 || close <= open+1 {
		return time.Time{}, fmt.Errorf("session id %q has no date segment", sessionID)
	}
	dateStr := sessionID[open+1 : close]

	if t, err := time.Parse("01-02-2006", dateStr); err == nil {
		return t, nil
	}
	if t, err := time.Parse("Jan 2, 2006", dateStr); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q in session id %q", dateStr, sessionID)
}

// FileName is the decomposed form of an upload file name following the
// NNNN[-t][-m|-a|-e|-l].<ext> convention.
type FileName struct {
	Stem        string
	IsThumbnail bool
	Bucket      TimeBucket
	Ext         string
}

// ParseFileName decomposes name. Unknown trailing letters are left in
// the stem, so plain names pass through untouched.
func ParseFileName(name string) FileName {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	fn := FileName{Ext: ext}

	if len(stem) >= 2 && stem[len(stem)-2] == '-' {
		switch bucket := TimeBucket(stem[len(stem)-1:]); bucket {
		case BucketMorning, BucketAfternoon, BucketEvening, BucketAllDay:
			fn.Bucket = bucket
			stem = stem[:len(stem)-2]
		}
	}

	if strings.HasSuffix(stem, "-t") {
		fn.IsThumbnail = true
		stem = strings.TrimSuffix(stem, "-t")
	}

	fn.Stem = stem
	return fn
}

// BaseFileName returns the name of the primary file a thumbnail belongs
// to: the same name with the "-t" infix removed. Returns the input
// unchanged when it carries no thumbnail marker.
func BaseFileName(name string) string {
	fn := ParseFileName(name)
	if !fn.IsThumbnail {
		return name
	}
	if fn.Bucket != BucketNone {
		return fn.Stem + "-" + string(fn.Bucket) + fn.Ext
	}
	return fn.Stem + fn.Ext
}

// GuessFileType maps a file name to a MIME type when the upload carried
// none. Videos dominate the corpus, so unknown extensions fall back to
// video/mp4.
func GuessFileType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".mp4", ".mov":
		return "video/mp4"
	default:
		return "video/mp4"
	}
}

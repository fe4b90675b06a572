package schedule

import (
	"log/slog"
	"sort"
	"time"

	"github.com/snappedhq/postqueue/app/naming"
)

// Scheduler assigns publish timestamps to a client's eligible files
// for one queue date. Ordering within any block or extension group is
// lexicographic by file name; that ordering is the sole source of
// determinism for the 2-minute spacing.
type Scheduler struct{}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Run schedules files for one client and returns the posts sorted by
// publish time. Thumbnails trail their base file by one spacing step;
// a thumbnail whose base file is absent is dropped.
func (s *Scheduler) Run(snapID, tzName string, files []InputFile, date time.Time) []Post {
	var legacy []InputFile
	var thumbnails []InputFile
	extGroups := make(map[naming.TimeBucket][]InputFile)

	for _, f := range files {
		switch {
		case f.IsThumbnail:
			thumbnails = append(thumbnails, f)
		case f.Bucket != naming.BucketNone:
			extGroups[f.Bucket] = append(extGroups[f.Bucket], f)
		default:
			legacy = append(legacy, f)
		}
	}

	var posts []Post
	posts = append(posts, s.scheduleLegacy(snapID, tzName, legacy, date)...)

	for _, bucket := range []naming.TimeBucket{naming.BucketMorning, naming.BucketAfternoon, naming.BucketEvening} {
		group := extGroups[bucket]
		if len(group) == 0 {
			continue
		}
		sortByName(group)
		base := ExtensionStart(bucket, tzName, date)
		for i, f := range group {
			posts = append(posts, makePost(f, snapID, tzName, base.Add(time.Duration(i)*PostSpacing)))
		}
	}

	if allDay := extGroups[naming.BucketAllDay]; len(allDay) > 0 {
		sortByName(allDay)
		slots := AllDaySlots(len(allDay), tzName, date)
		for i, f := range allDay {
			posts = append(posts, makePost(f, snapID, tzName, slots[i]))
		}
	}

	posts = append(posts, s.scheduleThumbnails(snapID, tzName, thumbnails, posts)...)

	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].ScheduledAt.Equal(posts[j].ScheduledAt) {
			return posts[i].FileName < posts[j].FileName
		}
		return posts[i].ScheduledAt.Before(posts[j].ScheduledAt)
	})

	return posts
}

// scheduleLegacy distributes files without a time extension across the
// three daily blocks: sizes differ by at most one, remainder files go
// to the earlier blocks, and files within a block are spaced two
// minutes apart.
func (s *Scheduler) scheduleLegacy(snapID, tzName string, files []InputFile, date time.Time) []Post {
	if len(files) == 0 {
		return nil
	}

	sortByName(files)
	blocks := TimeBlocks(tzName, date)

	total := len(files)
	base := total / 3
	remainder := total % 3

	posts := make([]Post, 0, total)
	idx := 0
	for block := 0; block < 3; block++ {
		size := base
		if block < remainder {
			size++
		}
		for k := 0; k < size; k++ {
			f := files[idx]
			idx++
			posts = append(posts, makePost(f, snapID, tzName, blocks[block].Add(time.Duration(k)*PostSpacing)))
		}
	}
	return posts
}

// scheduleThumbnails places each thumbnail one spacing step after the
// post it belongs to, located by stripping the -t infix from its name.
func (s *Scheduler) scheduleThumbnails(snapID, tzName string, thumbnails []InputFile, scheduled []Post) []Post {
	if len(thumbnails) == 0 {
		return nil
	}

	byName := make(map[string]Post, len(scheduled))
	for _, p := range scheduled {
		byName[p.FileName] = p
	}

	sortByName(thumbnails)

	var posts []Post
	for _, thumb := range thumbnails {
		baseName := naming.BaseFileName(thumb.FileName)
		basePost, ok := byName[baseName]
		if !ok {
			slog.Warn("Thumbnail has no scheduled base file, dropping", "file", thumb.FileName, "base", baseName)
			continue
		}
		posts = append(posts, makePost(thumb, snapID, tzName, basePost.ScheduledAt.Add(PostSpacing)))
	}
	return posts
}

func makePost(f InputFile, snapID, tzName string, at time.Time) Post {
	return Post{
		FileName:    f.FileName,
		CDNURL:      f.CDNLink,
		FileType:    f.FileType,
		SnapID:      snapID,
		Timezone:    tzName,
		PublishAs:   f.PublishAs,
		SessionID:   f.SessionID,
		Caption:     f.Caption,
		IsThumbnail: f.IsThumbnail,
		ScheduledAt: at,
	}
}

func sortByName(files []InputFile) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].FileName < files[j].FileName
	})
}

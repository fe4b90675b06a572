package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snappedhq/postqueue/app/clients"
	"github.com/snappedhq/postqueue/app/database"
)

// fakeUploadRepo keeps sessions in memory and implements the marking
// side effect of SaveBuild via the shared file index.
type fakeUploadRepo struct {
	sessions []database.UploadSession
	files    map[string]*database.UploadFile // keyed by file id
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{files: make(map[string]*database.UploadFile)}
}

func (r *fakeUploadRepo) addSession(clientID string, kind database.ContentKind, sessionID string, approved bool, fileNames ...string) {
	session := database.UploadSession{
		ID:        "row-" + sessionID + "-" + clientID,
		ClientID:  clientID,
		Kind:      kind,
		SessionID: sessionID,
		Approved:  approved,
	}
	for _, name := range fileNames {
		id := session.ID + "/" + name
		file := &database.UploadFile{
			ID:           id,
			SessionRowID: session.ID,
			FileName:     name,
			CDNLink:      "https://cdn.example.com/" + name,
			FileType:     "image/jpeg",
		}
		r.files[id] = file
		session.Files = append(session.Files, *file)
	}
	r.sessions = append(r.sessions, session)
}

func (r *fakeUploadRepo) CreateSession(session database.UploadSession) (string, error) {
	r.sessions = append(r.sessions, session)
	return session.ID, nil
}

func (r *fakeUploadRepo) GetClientSessions(clientID string, kind database.ContentKind) ([]database.UploadSession, error) {
	var result []database.UploadSession
	for _, s := range r.sessions {
		if s.ClientID != clientID || s.Kind != kind {
			continue
		}
		// Refresh file state from the index so queued flags are current
		copied := s
		copied.Files = nil
		for _, f := range s.Files {
			copied.Files = append(copied.Files, *r.files[f.ID])
		}
		result = append(result, copied)
	}
	return result, nil
}

func (r *fakeUploadRepo) ListClientIDs(kind database.ContentKind) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range r.sessions {
		if s.Kind == kind && !seen[s.ClientID] {
			seen[s.ClientID] = true
			ids = append(ids, s.ClientID)
		}
	}
	return ids, nil
}

func (r *fakeUploadRepo) CountSessions() (int, error) { return len(r.sessions), nil }

func (r *fakeUploadRepo) ResetQueuedFlags(clientID string, kind database.ContentKind) (int64, error) {
	var affected int64
	for _, f := range r.files {
		if f.Queued {
			f.Queued = false
			f.QueueTime = nil
			affected++
		}
	}
	return affected, nil
}

type fakeQueueRepo struct {
	uploadRepo *fakeUploadRepo
	queue      *database.Queue
	clients    []database.QueueClient
	saveCalls  int
}

func (r *fakeQueueRepo) SaveBuild(queue database.Queue, qclients []database.QueueClient, consumedFileIDs []string, queueTime time.Time) error {
	r.saveCalls++
	r.queue = &queue
	r.clients = qclients
	for _, id := range consumedFileIDs {
		if f, ok := r.uploadRepo.files[id]; ok {
			f.Queued = true
			t := queueTime
			f.QueueTime = &t
		}
	}
	return nil
}

func (r *fakeQueueRepo) GetQueue(queueDate string, kind database.ContentKind) (*database.Queue, []database.QueueClient, error) {
	if r.queue == nil || r.queue.QueueDate != queueDate || r.queue.Kind != kind {
		return nil, nil, nil
	}
	return r.queue, r.clients, nil
}

func (r *fakeQueueRepo) MarkClientProcessed(queueDate string, kind database.ContentKind, clientID string) error {
	return nil
}

func (r *fakeQueueRepo) GetQueueCount() (int, error) {
	if r.queue == nil {
		return 0, nil
	}
	return 1, nil
}

func writeClientConfig(t *testing.T, dir, clientID, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, clientID+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestCache(t *testing.T, dir string) *clients.ConfigCache {
	t.Helper()
	cache := clients.NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}
	return cache
}

var buildDate = time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)

func TestBuilder_BuildsClientQueue(t *testing.T) {
	dir := t.TempDir()
	writeClientConfig(t, dir, "th10021994", "snap_id: snap-th\nenabled: true\n")
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("th10021994", database.KindStory, "F(06-21-2025)_th10021994", false,
		"a.jpg", "b.jpg", "c.jpg", "d.jpg")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)
	result, err := builder.Run(context.Background(), buildDate, database.KindStory, "")
	if err != nil {
		t.Fatal(err)
	}

	if result.QueueDate != "2025-06-21" {
		t.Errorf("Expected queue date '2025-06-21', got '%s'", result.QueueDate)
	}
	if result.TotalPosts != 4 {
		t.Errorf("Expected 4 total posts, got %d", result.TotalPosts)
	}

	clientQueue, ok := result.ClientQueues["th10021994"]
	if !ok {
		t.Fatal("Expected client queue for th10021994")
	}
	if len(clientQueue.Stories) != 4 {
		t.Fatalf("Expected 4 stories, got %d", len(clientQueue.Stories))
	}

	// Block sizes [2,1,1]: a 12:00, b 12:02, c 17:00, d 21:00 UTC
	expected := map[string]time.Time{
		"a.jpg": time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC),
		"b.jpg": time.Date(2025, 6, 21, 12, 2, 0, 0, time.UTC),
		"c.jpg": time.Date(2025, 6, 21, 17, 0, 0, 0, time.UTC),
		"d.jpg": time.Date(2025, 6, 21, 21, 0, 0, 0, time.UTC),
	}
	for _, story := range clientQueue.Stories {
		want := expected[story.FileName]
		if !story.ScheduledAt.Equal(want) {
			t.Errorf("File %s: expected %v, got %v", story.FileName, want, story.ScheduledAt)
		}
		if story.SnapID != "snap-th" {
			t.Errorf("File %s: expected snap id 'snap-th', got '%s'", story.FileName, story.SnapID)
		}
		if story.PublishAs != "STORY" {
			t.Errorf("File %s: expected publish_as 'STORY', got '%s'", story.FileName, story.PublishAs)
		}
	}
}

func TestBuilder_IdempotentSelection(t *testing.T) {
	dir := t.TempDir()
	writeClientConfig(t, dir, "th10021994", "snap_id: snap-th\nenabled: true\n")
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("th10021994", database.KindStory, "F(06-21-2025)_th10021994", false, "a.jpg", "b.jpg")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)

	first, err := builder.Run(context.Background(), buildDate, database.KindStory, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.TotalPosts != 2 {
		t.Fatalf("Expected 2 posts on first build, got %d", first.TotalPosts)
	}

	// Every consumed file must now be flagged
	for _, f := range uploads.files {
		if !f.Queued {
			t.Errorf("File %s not marked queued after build", f.FileName)
		}
		if f.QueueTime == nil {
			t.Errorf("File %s has no queue time after build", f.FileName)
		}
	}

	second, err := builder.Run(context.Background(), buildDate, database.KindStory, "")
	if err != nil {
		t.Fatal(err)
	}
	if second.TotalPosts != 0 {
		t.Errorf("Expected 0 posts on rebuild, got %d", second.TotalPosts)
	}
	if len(second.ClientQueues) != 0 {
		t.Errorf("Expected no client queues on rebuild, got %d", len(second.ClientQueues))
	}
}

func TestBuilder_RebuildOverwrites(t *testing.T) {
	dir := t.TempDir()
	writeClientConfig(t, dir, "th10021994", "snap_id: snap-th\nenabled: true\n")
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("th10021994", database.KindStory, "F(06-21-2025)_th10021994", false, "a.jpg")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)

	if _, err := builder.Run(context.Background(), buildDate, database.KindStory, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := builder.Run(context.Background(), buildDate, database.KindStory, ""); err != nil {
		t.Fatal(err)
	}

	if queues.saveCalls != 2 {
		t.Errorf("Expected 2 save calls, got %d", queues.saveCalls)
	}
	// Second build found nothing eligible: the persisted queue is
	// replaced, not merged
	if queues.queue.TotalPosts != 0 {
		t.Errorf("Expected overwritten queue with 0 posts, got %d", queues.queue.TotalPosts)
	}
}

func TestBuilder_SkipsWrongDate(t *testing.T) {
	dir := t.TempDir()
	writeClientConfig(t, dir, "th10021994", "snap_id: snap-th\nenabled: true\n")
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("th10021994", database.KindStory, "F(06-20-2025)_th10021994", false, "a.jpg")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)
	result, err := builder.Run(context.Background(), buildDate, database.KindStory, "")
	if err != nil {
		t.Fatal(err)
	}

	if result.TotalPosts != 0 {
		t.Errorf("Expected no posts for mismatched date, got %d", result.TotalPosts)
	}
}

func TestBuilder_SkipsUnparseableSessionID(t *testing.T) {
	dir := t.TempDir()
	writeClientConfig(t, dir, "th10021994", "snap_id: snap-th\nenabled: true\n")
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("th10021994", database.KindStory, "garbage-session-id", false, "a.jpg")
	uploads.addSession("th10021994", database.KindStory, "F(06-21-2025)_th10021994", false, "b.jpg")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)
	result, err := builder.Run(context.Background(), buildDate, database.KindStory, "")
	if err != nil {
		t.Fatal(err)
	}

	// The bad session is skipped, the good one still builds
	if result.TotalPosts != 1 {
		t.Errorf("Expected 1 post, got %d", result.TotalPosts)
	}
}

func TestBuilder_SkipsUnregisteredClient(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("ghost", database.KindStory, "F(06-21-2025)_ghost", false, "a.jpg")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)
	result, err := builder.Run(context.Background(), buildDate, database.KindStory, "")
	if err != nil {
		t.Fatal(err)
	}

	if result.TotalPosts != 0 {
		t.Errorf("Expected no posts for unregistered client, got %d", result.TotalPosts)
	}
}

func TestBuilder_ApprovalGating(t *testing.T) {
	dir := t.TempDir()
	writeClientConfig(t, dir, "th10021994", "snap_id: snap-th\nenabled: true\nrequire_approval: true\n")
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("th10021994", database.KindStory, "F(06-21-2025)_th10021994", false, "a.jpg")
	uploads.addSession("th10021994", database.KindStory, "F(Jun 21, 2025)_th10021994_2", true, "b.jpg")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)
	result, err := builder.Run(context.Background(), buildDate, database.KindStory, "")
	if err != nil {
		t.Fatal(err)
	}

	if result.TotalPosts != 1 {
		t.Fatalf("Expected only the approved session's post, got %d", result.TotalPosts)
	}
	stories := result.ClientQueues["th10021994"].Stories
	if stories[0].FileName != "b.jpg" {
		t.Errorf("Expected b.jpg from approved session, got %s", stories[0].FileName)
	}
}

func TestBuilder_ClientFilter(t *testing.T) {
	dir := t.TempDir()
	writeClientConfig(t, dir, "alpha", "snap_id: snap-a\nenabled: true\n")
	writeClientConfig(t, dir, "beta", "snap_id: snap-b\nenabled: true\n")
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("alpha", database.KindStory, "F(06-21-2025)_alpha", false, "a.jpg")
	uploads.addSession("beta", database.KindStory, "F(06-21-2025)_beta", false, "b.jpg")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)
	result, err := builder.Run(context.Background(), buildDate, database.KindStory, "alpha")
	if err != nil {
		t.Fatal(err)
	}

	if len(result.ClientQueues) != 1 {
		t.Fatalf("Expected 1 client queue, got %d", len(result.ClientQueues))
	}
	if _, ok := result.ClientQueues["alpha"]; !ok {
		t.Error("Expected queue for filtered client 'alpha'")
	}
}

func TestBuilder_SpotlightPublishAs(t *testing.T) {
	dir := t.TempDir()
	writeClientConfig(t, dir, "th10021994", "snap_id: snap-th\nenabled: true\n")
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("th10021994", database.KindSpotlight, "F(06-21-2025)_th10021994", false, "a.mp4")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)
	result, err := builder.Run(context.Background(), buildDate, database.KindSpotlight, "")
	if err != nil {
		t.Fatal(err)
	}

	stories := result.ClientQueues["th10021994"].Stories
	if len(stories) != 1 {
		t.Fatalf("Expected 1 story, got %d", len(stories))
	}
	if stories[0].PublishAs != "SPOTLIGHT" {
		t.Errorf("Expected publish_as 'SPOTLIGHT', got '%s'", stories[0].PublishAs)
	}
}

func TestBuilder_DisabledClientSkipped(t *testing.T) {
	dir := t.TempDir()
	writeClientConfig(t, dir, "th10021994", "snap_id: snap-th\nenabled: false\n")
	cache := newTestCache(t, dir)

	uploads := newFakeUploadRepo()
	uploads.addSession("th10021994", database.KindStory, "F(06-21-2025)_th10021994", false, "a.jpg")
	queues := &fakeQueueRepo{uploadRepo: uploads}

	builder := NewBuilder(uploads, queues, cache)
	result, err := builder.Run(context.Background(), buildDate, database.KindStory, "")
	if err != nil {
		t.Fatal(err)
	}

	if result.TotalPosts != 0 {
		t.Errorf("Expected no posts for disabled client, got %d", result.TotalPosts)
	}
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/snappedhq/postqueue/app/cfg"
	"github.com/snappedhq/postqueue/app/dispatch"
	"github.com/snappedhq/postqueue/app/tasks"
)

type fakeScheduler struct {
	enqueued []tasks.TaskInterface
}

func (s *fakeScheduler) Start() {}
func (s *fakeScheduler) Stop()  {}
func (s *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	s.enqueued = append(s.enqueued, task)
	return nil
}

func postContext(t *testing.T, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, target, nil)
	return c, w
}

func TestProcessMake_UnconfiguredWebhook(t *testing.T) {
	// No MAKE_WEBHOOK_URL leaves the dispatcher without senders; the
	// request must fail up front instead of enqueueing a task that can
	// only error in the background
	cfg.Set(&cfg.Cfg{UserAgent: "test-agent", PostDelaySeconds: 1})
	dispatcher := dispatch.NewDispatcher(nil, nil)
	scheduler := &fakeScheduler{}
	h := NewHandler(nil, nil, nil, nil, dispatcher, nil, scheduler)

	c, w := postContext(t, "/posting/process-make")
	h.ProcessMake(c)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	if len(scheduler.enqueued) != 0 {
		t.Errorf("Expected no tasks enqueued, got %d", len(scheduler.enqueued))
	}
}

func TestProcessZapier_NilDispatcher(t *testing.T) {
	cfg.Set(&cfg.Cfg{UserAgent: "test-agent", PostDelaySeconds: 1})
	scheduler := &fakeScheduler{}
	h := NewHandler(nil, nil, nil, nil, nil, nil, scheduler)

	c, w := postContext(t, "/posting/process-zapier")
	h.ProcessZapier(c)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestProcessZapier_EnqueuesDispatchTask(t *testing.T) {
	cfg.Set(&cfg.Cfg{UserAgent: "test-agent", PostDelaySeconds: 1})
	dispatcher := dispatch.NewWebhookDispatcher(nil, nil, "https://hooks.example.com/zapier")
	scheduler := &fakeScheduler{}
	h := NewHandler(nil, nil, nil, nil, nil, dispatcher, scheduler)

	c, w := postContext(t, "/posting/process-zapier?kind=story")
	h.ProcessZapier(c)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}
	if len(scheduler.enqueued) != 1 {
		t.Fatalf("Expected 1 task enqueued, got %d", len(scheduler.enqueued))
	}
	if scheduler.enqueued[0].GetType() != tasks.TaskTypeDispatchQueue {
		t.Errorf("Expected dispatch task, got %s", scheduler.enqueued[0].GetType())
	}
}

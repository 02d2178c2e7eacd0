package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cohelm/brrr"
	"github.com/cohelm/brrr/queue/memqueue"
	"github.com/cohelm/brrr/store/memstore"
)

type greetArgs struct {
	Greetee string `msgpack:"greetee"`
}

func newTestHandler(t *testing.T) (*Handler, *brrr.Brrr) {
	t.Helper()
	b := brrr.New()
	b.Setup(memqueue.New(), memstore.New())
	return New(b), b
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %v, raw: %s", err, rec.Body.String())
	}
	return body
}

func TestHandler_GetUnknownTaskReturns404(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/nosuchtask", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "no such task" {
		t.Errorf(`error = %v, want "no such task"`, got)
	}
}

func TestHandler_GetBeforeScheduleReturns404NoResult(t *testing.T) {
	h, b := newTestHandler(t)
	brrr.RegisterTask(b, "greet", func(_ context.Context, a greetArgs) (string, error) {
		return "Hello, " + a.Greetee + "!", nil
	})

	req := httptest.NewRequest(http.MethodGet, "/greet?greetee=Ada", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "no result" {
		t.Errorf(`error = %v, want "no result"`, got)
	}
}

func TestHandler_PostSchedulesThenGetReturns200(t *testing.T) {
	h, b := newTestHandler(t)
	greet := brrr.RegisterTask(b, "greet", func(_ context.Context, a greetArgs) (string, error) {
		return "Hello, " + a.Greetee + "!", nil
	})

	reqBody, err := json.Marshal(scheduleRequest{Kwargs: map[string]any{"greetee": "Ada"}})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	postReq := httptest.NewRequest(http.MethodPost, "/greet", bytes.NewReader(reqBody))
	postRec := httptest.NewRecorder()
	h.ServeHTTP(postRec, postReq)

	if postRec.Code != http.StatusAccepted {
		t.Fatalf("POST status = %d, want 202", postRec.Code)
	}
	if got := decodeBody(t, postRec)["status"]; got != "accepted" {
		t.Errorf(`status = %v, want "accepted"`, got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- b.Wrrrk(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		getReq := httptest.NewRequest(http.MethodGet, "/greet?greetee=Ada", nil)
		getRec := httptest.NewRecorder()
		h.ServeHTTP(getRec, getReq)
		if getRec.Code == http.StatusOK {
			body := decodeBody(t, getRec)
			if body["result"] != "Hello, Ada!" {
				cancel()
				<-runErr
				t.Fatalf(`result = %v, want "Hello, Ada!"`, body["result"])
			}
			break
		}
		select {
		case <-deadline:
			cancel()
			<-runErr
			t.Fatal("timed out waiting for scheduled task to complete")
		case <-time.After(2 * time.Millisecond):
		}
	}

	if greet.Name() != "greet" {
		t.Errorf("greet.Name() = %q, want greet", greet.Name())
	}

	cancel()
	<-runErr
}

func TestHandler_UnsupportedMethodReturns405(t *testing.T) {
	h, b := newTestHandler(t)
	brrr.RegisterTask(b, "greet", func(_ context.Context, a greetArgs) (string, error) { return a.Greetee, nil })

	req := httptest.NewRequest(http.MethodDelete, "/greet", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandler_PostInvalidBodyReturns400(t *testing.T) {
	h, b := newTestHandler(t)
	brrr.RegisterTask(b, "greet", func(_ context.Context, a greetArgs) (string, error) { return a.Greetee, nil })

	req := httptest.NewRequest(http.MethodPost, "/greet", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTaskNameFromPath(t *testing.T) {
	cases := map[string]string{
		"/fib":      "fib",
		"/":         "",
		"":          "",
		"/fib/x":    "",
		"fib":       "",
		"/fib_task": "fib_task",
	}
	for path, want := range cases {
		if got := taskNameFromPath(path); got != want {
			t.Errorf("taskNameFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

package server_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/backsweep/backsweep/server"
)

// fakeStore stands in for the S3 backend. It serves configured object
// listings per folder prefix, records every deletion batch, and answers
// config document fetches. Safe for concurrent use.
type fakeStore struct {
	mu sync.Mutex

	objects   map[string][]server.BackupObject // prefix -> listing
	listErr   map[string]error                 // prefix -> injected failure
	listCalls int

	failKeys    map[string]bool // keys whose deletion fails
	deleteCalls [][]string      // keys of each DeleteObjects call

	configs  map[string][]byte // "bucket/key" -> config document
	fetchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  map[string][]server.BackupObject{},
		listErr:  map[string]error{},
		failKeys: map[string]bool{},
		configs:  map[string][]byte{},
	}
}

func (f *fakeStore) ListBackupObjects(_ context.Context, prefix string) ([]server.BackupObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++

	if err := f.listErr[prefix]; err != nil {
		return nil, err
	}

	return f.objects[prefix], nil
}

func (f *fakeStore) DeleteObjects(_ context.Context, keys []string) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteCalls = append(f.deleteCalls, keys)

	var deleted, failed int

	for _, key := range keys {
		if f.failKeys[key] {
			failed++
		} else {
			deleted++
		}
	}

	return deleted, failed
}

func (f *fakeStore) FetchObject(_ context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	data, found := f.configs[bucket+"/"+key]
	if !found {
		return nil, fmt.Errorf("no such object: %s/%s", bucket, key)
	}

	return data, nil
}

// deletedKeys flattens the recorded deletion batches.
func (f *fakeStore) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for _, call := range f.deleteCalls {
		keys = append(keys, call...)
	}

	return keys
}

func (f *fakeStore) deleteCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.deleteCalls)
}

func (f *fakeStore) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.listCalls
}

func createTestService(tb testing.TB) (*server.Service, *fakeStore) {
	tb.Helper()

	store := newFakeStore()

	service := &server.Service{
		Lister:          store,
		Deleter:         store,
		Fetcher:         store,
		Bucket:          "backups",
		RetentionConfig: `{"retention_policies": []}`,
		Concurrency:     1,
	}

	return service, store
}

type TestRequest struct {
	method  string
	path    string
	body    []byte
	handler http.HandlerFunc
	// function to checkResponse the response
	checkResponse *func(*testing.T, *httptest.ResponseRecorder)
	header        map[string]string
}

func testRequest(t *testing.T, req *TestRequest) *httptest.ResponseRecorder {
	t.Helper()

	rr := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.path, bytes.NewBuffer(req.body))

	for k, v := range req.header {
		httpReq.Header.Set(k, v)
	}

	ok(t, err)
	req.handler.ServeHTTP(rr, httpReq)

	if req.checkResponse != nil {
		(*req.checkResponse)(t, rr)
	} else if rr.Code < 200 || rr.Code >= 300 {
		httpOk(t, rr)
	}

	return rr
}

// expectStatus builds a checkResponse function asserting a status code.
func expectStatus(status int) *func(*testing.T, *httptest.ResponseRecorder) {
	check := func(t *testing.T, w *httptest.ResponseRecorder) {
		t.Helper()

		if w.Code != status {
			t.Errorf("Expected status code %d, got %d: %s", status, w.Code, w.Body.String())
		}
	}

	return &check
}

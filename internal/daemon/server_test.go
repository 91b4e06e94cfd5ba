package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"soundsketch/internal/api"
	"soundsketch/internal/artifacts"
	"soundsketch/internal/config"
	"soundsketch/internal/jobs"
	"soundsketch/internal/logging"
	"soundsketch/internal/testsupport"
	"soundsketch/internal/workflow"
)

type noopProcessor struct{}

func (noopProcessor) Process(context.Context, string) error { return nil }

type serverFixture struct {
	cfg       *config.Config
	store     *jobs.Store
	artifacts *artifacts.Store
	manager   *workflow.Manager
	http      *httptest.Server
}

// newServerFixture stands up the API over real stores. The workflow manager
// is never started so submitted jobs stay queued and observable.
func newServerFixture(t *testing.T, opts ...testsupport.ConfigOption) *serverFixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	artifactStore, err := artifacts.NewStore(cfg)
	if err != nil {
		t.Fatalf("artifacts.NewStore: %v", err)
	}
	manager := workflow.NewManager(cfg, store, noopProcessor{}, logging.NewNop())
	server := newAPIServer(cfg, store, artifactStore, manager, logging.NewNop())

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &serverFixture{cfg: cfg, store: store, artifacts: artifactStore, manager: manager, http: ts}
}

func (f *serverFixture) upload(t *testing.T, filename string, content []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	resp, err := http.Post(f.http.URL+"/api/convert", writer.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /api/convert: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var payload T
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	fixture := newServerFixture(t)

	resp, err := http.Get(fixture.http.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	health := decodeBody[api.HealthResponse](t, resp)
	if health.Status != "healthy" || health.Timestamp == "" {
		t.Fatalf("health = %#v", health)
	}
}

func TestConvertThenStatusThenDelete(t *testing.T) {
	fixture := newServerFixture(t)

	resp := fixture.upload(t, "track.mp3", []byte("pretend audio"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("convert status = %d", resp.StatusCode)
	}
	submitted := decodeBody[api.SubmitResponse](t, resp)
	if submitted.JobID == "" || submitted.Status != "queued" {
		t.Fatalf("submit response = %#v", submitted)
	}

	statusResp, err := http.Get(fixture.http.URL + "/api/status/" + submitted.JobID)
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	if statusResp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", statusResp.StatusCode)
	}
	record := decodeBody[api.JobRecord](t, statusResp)
	if record.JobID != submitted.JobID || record.Status != "queued" {
		t.Fatalf("record = %#v", record)
	}
	if len(record.MusicXMLFiles) != 0 || len(record.MIDIFiles) != 0 || len(record.Errors) != 0 {
		t.Fatalf("fresh job carries outputs: %#v", record)
	}

	// The source artifact and snapshot land on disk immediately.
	sources, err := fixture.artifacts.List(submitted.JobID, artifacts.CategorySource)
	if err != nil || len(sources) != 1 || sources[0] != "track.mp3" {
		t.Fatalf("source artifacts = %v (%v)", sources, err)
	}
	if _, err := fixture.artifacts.ReadRecord(submitted.JobID); err != nil {
		t.Fatalf("missing snapshot: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, fixture.http.URL+"/api/jobs/"+submitted.JobID, nil)
	deleteResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	if deleteResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", deleteResp.StatusCode)
	}
	deleteResp.Body.Close()

	afterResp, err := http.Get(fixture.http.URL + "/api/status/" + submitted.JobID)
	if err != nil {
		t.Fatalf("GET status after delete: %v", err)
	}
	afterResp.Body.Close()
	if afterResp.StatusCode != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want 404", afterResp.StatusCode)
	}
	if _, err := fixture.artifacts.ReadRecord(submitted.JobID); err == nil {
		t.Fatal("artifacts survived delete")
	}
}

func TestConvertRejectsBadUploads(t *testing.T) {
	fixture := newServerFixture(t)

	resp, err := http.Post(fixture.http.URL+"/api/convert", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST without form: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing file field status = %d, want 400", resp.StatusCode)
	}

	resp = fixture.upload(t, "notes.txt", []byte("not audio"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad extension status = %d, want 400", resp.StatusCode)
	}

	// Rejected submissions leave no trace in the job list.
	resp, err = http.Get(fixture.http.URL + "/api/jobs")
	if err != nil {
		t.Fatalf("GET /api/jobs: %v", err)
	}
	listing := decodeBody[api.JobListResponse](t, resp)
	if listing.Count != 0 {
		t.Fatalf("job list count = %d after rejected uploads, want 0", listing.Count)
	}
}

func TestConvertRejectsOversizedUpload(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.cfg.Server.MaxUploadMB = 1

	oversized := bytes.Repeat([]byte{0x55}, 1024*1024+1)
	resp := fixture.upload(t, "big.wav", oversized)
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversize status = %d, want 413", resp.StatusCode)
	}
}

func TestConvertQueueFull(t *testing.T) {
	fixture := newServerFixture(t, testsupport.WithWorkers(1, 1))

	first := fixture.upload(t, "one.mp3", []byte("a"))
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first submit status = %d", first.StatusCode)
	}

	second := fixture.upload(t, "two.mp3", []byte("b"))
	if second.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("second submit status = %d, want 503", second.StatusCode)
	}
	second.Body.Close()

	// The rejected job leaves no trace.
	listing, err := fixture.store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	if len(listing) != 1 {
		t.Fatalf("jobs after rejection = %d, want 1", len(listing))
	}
}

func TestDownloadServesPartialResults(t *testing.T) {
	fixture := newServerFixture(t)
	ctx := context.Background()

	job := testsupport.NewJob(t, fixture.store, "dl-job", "song.wav")
	if _, err := fixture.store.Transition(ctx, job.ID, jobs.StatusProcessing, nil, nil); err != nil {
		t.Fatalf("transition: %v", err)
	}
	midiBytes := []byte("MThd\x00\x00\x00\x06")
	if _, err := fixture.artifacts.PutBytes(job.ID, artifacts.CategoryMIDI, "vocals.mid", midiBytes); err != nil {
		t.Fatalf("put midi: %v", err)
	}

	// vocals.mid exists on disk, so it downloads even though the job is
	// still processing and the record lists nothing yet.
	resp, err := http.Get(fixture.http.URL + "/api/download/dl-job/midi/vocals")
	if err != nil {
		t.Fatalf("GET download: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "audio/midi") {
		t.Errorf("content type = %q", got)
	}
	if !bytes.Equal(body, midiBytes) {
		t.Errorf("downloaded bytes = %q", body)
	}

	cases := []struct {
		path string
		want int
	}{
		{"/api/download/dl-job/midi/drums", http.StatusNotFound},
		{"/api/download/no-such-job/midi/vocals", http.StatusNotFound},
		{"/api/download/dl-job/pdf/vocals", http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, err := http.Get(fixture.http.URL + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("GET %s = %d, want %d", tc.path, resp.StatusCode, tc.want)
		}
	}
}

func TestDeleteProcessingConflicts(t *testing.T) {
	fixture := newServerFixture(t)
	ctx := context.Background()

	job := testsupport.NewJob(t, fixture.store, "busy-job", "song.wav")
	if _, err := fixture.store.Transition(ctx, job.ID, jobs.StatusProcessing, nil, nil); err != nil {
		t.Fatalf("transition: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, fixture.http.URL+"/api/jobs/busy-job", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete processing = %d, want 409", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, fixture.http.URL+"/api/jobs/never-existed", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE unknown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete unknown = %d, want 404", resp.StatusCode)
	}
}

func TestJobsListLimit(t *testing.T) {
	fixture := newServerFixture(t)
	for i := 0; i < 5; i++ {
		testsupport.NewJob(t, fixture.store, fmt.Sprintf("job-%d", i), "song.wav")
	}

	resp, err := http.Get(fixture.http.URL + "/api/jobs?limit=3")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	listing := decodeBody[api.JobListResponse](t, resp)
	if listing.Count != 3 || len(listing.Jobs) != 3 {
		t.Fatalf("listing = %#v", listing)
	}

	resp, err = http.Get(fixture.http.URL + "/api/jobs?limit=zero")
	if err != nil {
		t.Fatalf("GET jobs bad limit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalysisEndpoint(t *testing.T) {
	fixture := newServerFixture(t)
	job := testsupport.NewJob(t, fixture.store, "an-job", "song.wav")

	resp, err := http.Get(fixture.http.URL + "/api/analysis/" + job.ID)
	if err != nil {
		t.Fatalf("GET analysis: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("analysis before extraction = %d, want 404", resp.StatusCode)
	}

	features := []byte(`{"filename":"song.wav","tempo_bpm":121.5}`)
	if _, err := fixture.artifacts.PutBytes(job.ID, artifacts.CategoryAnalysis, "features.json", features); err != nil {
		t.Fatalf("put features: %v", err)
	}

	resp, err = http.Get(fixture.http.URL + "/api/analysis/" + job.ID)
	if err != nil {
		t.Fatalf("GET analysis: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analysis status = %d", resp.StatusCode)
	}
	payload := decodeBody[map[string]any](t, resp)
	if payload["tempo_bpm"] != 121.5 {
		t.Fatalf("payload = %#v", payload)
	}
}

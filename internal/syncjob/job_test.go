package syncjob

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"gocloud.dev/blob/memblob"

	"github.com/ligustah/csvsync/internal/archive"
	"github.com/ligustah/csvsync/internal/auth"
	"github.com/ligustah/csvsync/internal/csvparse"
	synchttp "github.com/ligustah/csvsync/internal/http"
	"github.com/ligustah/csvsync/internal/logging"
	"github.com/ligustah/csvsync/internal/model"
	"github.com/ligustah/csvsync/internal/store"
	"github.com/ligustah/csvsync/internal/testutils"
)

const (
	testToken = "tok-123"
	testPath  = "/files/2024-05.csv"
)

type staticResolver struct {
	url   string
	err   error
	calls int
}

func (r *staticResolver) LatestURL(ctx context.Context, m model.Model) (string, error) {
	r.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.url, r.err
}

type harness struct {
	tokens   *testutils.TokenServer
	files    *testutils.FileServer
	resolver *staticResolver
	logs     *bytes.Buffer
	opts     Options
}

func newHarness(t *testing.T, files *testutils.FileServer, issuedToken string) *harness {
	t.Helper()
	logs := &bytes.Buffer{}
	return &harness{
		tokens:   testutils.StartTokenServer(t, issuedToken),
		files:    files,
		resolver: &staticResolver{url: files.FileURL()},
		logs:     logs,
		opts: Options{
			Model:   model.CEPR,
			Service: "csvsync-test",
			Logger:  logging.New(logging.Options{Format: "json", Level: "debug", Output: logs}),
		},
	}
}

func (h *harness) job() *Job {
	client := synchttp.NewClient(synchttp.DefaultOptions())
	a := auth.New(auth.Options{
		TokenURL: h.tokens.TokenURL(),
		ClientID: "csvsync",
	}, client.HTTPClient())
	return New(h.resolver, a, client, h.opts)
}

func TestRunParsesRecords(t *testing.T) {
	body := "cepr,dob,dtr\n 0101901234 , 1990-01-01 ,2024-05-01\n0202851234,1985-02-02,2024-05-02\n"
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, body), testToken)
	job := h.job()

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []model.Record{
		{CEPR: "0101901234", DOB: "1990-01-01", DTR: "2024-05-01"},
		{CEPR: "0202851234", DOB: "1985-02-02", DTR: "2024-05-02"},
	}
	if len(res.Records) != len(want) {
		t.Fatalf("got %d records, want %d", len(res.Records), len(want))
	}
	for i := range want {
		if res.Records[i] != want[i] {
			t.Errorf("record %d: got %+v, want %+v", i, res.Records[i], want[i])
		}
	}
	if res.Bytes != int64(len(body)) {
		t.Errorf("Bytes = %d, want %d", res.Bytes, len(body))
	}
	if res.URL != h.files.FileURL() {
		t.Errorf("URL = %q", res.URL)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if job.State() != Completed {
		t.Errorf("state = %s, want completed", job.State())
	}
	if h.tokens.Requests() != 1 || h.files.Requests() != 1 {
		t.Errorf("token requests = %d, file requests = %d", h.tokens.Requests(), h.files.Requests())
	}

	logs := h.logs.String()
	for _, s := range []string{
		`"msg":"Preparing table update"`,
		`"msg":"Records parsed"`,
		`"count":2`,
		`"first_id":"0101901234"`,
		`"last_id":"0202851234"`,
		`"msg":"Record sample"`,
	} {
		if !strings.Contains(logs, s) {
			t.Errorf("logs missing %s", s)
		}
	}
}

func TestRunHeaderOnly(t *testing.T) {
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, "cepr,dob,dtr\n"), testToken)

	res, err := h.job().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 0 {
		t.Fatalf("got %d records, want 0", len(res.Records))
	}
	if _, ok := res.First(); ok {
		t.Error("First reported a record")
	}
	if strings.Contains(h.logs.String(), "first_id") {
		t.Error("summary should not carry first_id without records")
	}
}

func TestRunLookupFailure(t *testing.T) {
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, ""), testToken)
	h.resolver.err = store.ErrNoURL
	job := h.job()

	res, err := job.Run(context.Background())
	if res != nil {
		t.Fatal("expected nil result")
	}
	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	if !errors.Is(err, store.ErrNoURL) {
		t.Errorf("expected ErrNoURL in chain, got %v", err)
	}
	if h.tokens.Requests() != 0 {
		t.Error("authentication attempted after failed lookup")
	}
	if job.State() != Failed {
		t.Errorf("state = %s, want failed", job.State())
	}
}

func TestRunAuthFailure(t *testing.T) {
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, "cepr,dob,dtr\n"), "")
	job := h.job()

	res, err := job.Run(context.Background())
	if res != nil {
		t.Fatal("expected nil result")
	}
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if !errors.Is(err, auth.ErrRejected) {
		t.Errorf("expected ErrRejected in chain, got %v", err)
	}
	if h.files.Requests() != 0 {
		t.Error("download attempted after failed authentication")
	}
	if Stage(err) != "auth" {
		t.Errorf("Stage = %q", Stage(err))
	}
}

func TestRunDownloadRejected(t *testing.T) {
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, "cepr,dob,dtr\n"), "other-token")

	_, err := h.job().Run(context.Background())
	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if !errors.Is(err, synchttp.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized in chain, got %v", err)
	}
}

func TestRunStreamDropsMidBody(t *testing.T) {
	prefix := "cepr,dob,dtr\n0101901234,1990-01-01,2024-05-01\n"
	h := newHarness(t, testutils.StartTruncatingFileServer(t, testPath, testToken, prefix), testToken)
	job := h.job()

	res, err := job.Run(context.Background())
	if res != nil {
		t.Fatal("expected nil result, records must be discarded")
	}
	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if strings.Contains(h.logs.String(), "Records parsed") {
		t.Error("summary logged for failed run")
	}
	if job.State() != Failed {
		t.Errorf("state = %s, want failed", job.State())
	}
}

func TestRunMalformedRow(t *testing.T) {
	body := "cepr,dob,dtr\n0101901234,1990-01-01,2024-05-01\n0202851234,1985-02-02\n"
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, body), testToken)

	res, err := h.job().Run(context.Background())
	if res != nil {
		t.Fatal("expected nil result")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	var cpe *csvparse.ParseError
	if !errors.As(err, &cpe) {
		t.Fatalf("expected csvparse.ParseError in chain, got %v", err)
	}
	if cpe.Line != 3 {
		t.Errorf("Line = %d, want 3", cpe.Line)
	}
	if !errors.Is(err, csvparse.ErrFieldCount) {
		t.Errorf("expected ErrFieldCount, got %v", err)
	}
}

func TestRunOnce(t *testing.T) {
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, "cepr,dob,dtr\n"), testToken)
	job := h.job()

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := job.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Fatalf("expected ErrAlreadyRun, got %v", err)
	}
	if h.resolver.calls != 1 {
		t.Errorf("resolver called %d times", h.resolver.calls)
	}
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, "cepr,dob,dtr\n"), testToken)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.job().Run(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestRunArchivesDownload(t *testing.T) {
	body := "cepr,dob,dtr\n0101901234,1990-01-01,2024-05-01\n"
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, body), testToken)

	bkt := memblob.OpenBucket(nil)
	defer bkt.Close()
	h.opts.Archiver = archive.New(bkt, archive.Options{Prefix: "exports/"})

	res, err := h.job().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(res.ArchiveKey, "exports/") || !strings.HasSuffix(res.ArchiveKey, "/2024-05.csv") {
		t.Fatalf("unexpected archive key %q", res.ArchiveKey)
	}

	got, err := bkt.ReadAll(context.Background(), res.ArchiveKey)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != body {
		t.Errorf("archived %q, want %q", got, body)
	}
}

func TestRunFailureAbortsArchive(t *testing.T) {
	prefix := "cepr,dob,dtr\n0101901234,1990-01-01,2024-05-01\n"
	h := newHarness(t, testutils.StartTruncatingFileServer(t, testPath, testToken, prefix), testToken)

	bkt := memblob.OpenBucket(nil)
	defer bkt.Close()
	h.opts.Archiver = archive.New(bkt, archive.Options{Prefix: "exports/"})

	if _, err := h.job().Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	iter := bkt.List(nil)
	if obj, err := iter.Next(context.Background()); err == nil {
		t.Errorf("unexpected archived object %q", obj.Key)
	}
}

func TestRunProgress(t *testing.T) {
	body := "cepr,dob,dtr\n1,2,3\n4,5,6\n"
	h := newHarness(t, testutils.StartFileServer(t, testPath, testToken, body), testToken)
	out := &bytes.Buffer{}
	h.opts.Progress = true
	h.opts.ProgressOutput = out

	if _, err := h.job().Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "Rows: 2") {
		t.Errorf("progress output missing row count: %q", out.String())
	}
}

func TestRedact(t *testing.T) {
	got := redact("https://user:pw@vault.example.com/files/a.csv?X-Amz-Signature=abc")
	if got != "https://vault.example.com/files/a.csv" {
		t.Errorf("redact = %q", got)
	}
}

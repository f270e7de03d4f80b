package syncjob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ligustah/csvsync/internal/archive"
	"github.com/ligustah/csvsync/internal/auth"
	"github.com/ligustah/csvsync/internal/csvparse"
	synchttp "github.com/ligustah/csvsync/internal/http"
	"github.com/ligustah/csvsync/internal/model"
	"github.com/ligustah/csvsync/internal/progress"
)

// DefaultSampleSize is how many leading records are logged at debug level.
const DefaultSampleSize = 10

// Resolver finds the URL of the newest export for a model.
type Resolver interface {
	LatestURL(ctx context.Context, m model.Model) (string, error)
}

// Authenticator obtains a bearer token.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
}

// Fetcher opens a streaming download.
type Fetcher interface {
	Open(ctx context.Context, req synchttp.Request) (*synchttp.Response, error)
}

// Options configures a Job.
type Options struct {
	// Model selects the table queried and the CSV layout.
	Model model.Model

	// Service is used in the start-up log line.
	Service string

	// Logger receives run logs. Default: slog.Default().
	Logger *slog.Logger

	// Archiver, if set, receives a copy of the raw download.
	Archiver *archive.Archiver

	// Progress enables the progress reporter on ProgressOutput.
	Progress       bool
	ProgressOutput io.Writer

	// SampleSize is the number of leading records logged at debug level.
	// Zero means DefaultSampleSize; negative disables the sample.
	SampleSize int
}

// Result is the outcome of a successful run.
type Result struct {
	RunID      string
	URL        string
	Records    []model.Record
	Bytes      int64
	ArchiveKey string
	Duration   time.Duration
}

// First returns the first record, or false if there are none.
func (r *Result) First() (model.Record, bool) {
	if r == nil || len(r.Records) == 0 {
		return model.Record{}, false
	}
	return r.Records[0], true
}

// Last returns the last record, or false if there are none.
func (r *Result) Last() (model.Record, bool) {
	if r == nil || len(r.Records) == 0 {
		return model.Record{}, false
	}
	return r.Records[len(r.Records)-1], true
}

// Job runs the pipeline once: resolve the latest URL, authenticate,
// download and parse.
type Job struct {
	resolver Resolver
	auth     Authenticator
	fetcher  Fetcher
	opts     Options

	mu    sync.Mutex
	state State
	ran   bool
	log   *slog.Logger
}

// New creates a Job. All collaborators are required.
func New(r Resolver, a Authenticator, f Fetcher, opts Options) *Job {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SampleSize == 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.ProgressOutput == nil {
		opts.ProgressOutput = os.Stderr
	}
	return &Job{
		resolver: r,
		auth:     a,
		fetcher:  f,
		opts:     opts,
		state:    Idle,
		log:      opts.Logger,
	}
}

// State returns the current state of the run.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) transition(to State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !isAllowedTransition(j.state, to) {
		return fmt.Errorf("syncjob: disallowed transition %s -> %s", j.state, to)
	}
	j.log.Debug("State changed", "from", j.state.String(), "to", to.String())
	j.state = to
	return nil
}

// Run executes the pipeline. On failure it returns a nil Result and one of
// LookupError, AuthError, StreamError, ParseError or ArchiveError. A Job
// runs once; later calls return ErrAlreadyRun.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	j.mu.Lock()
	if j.ran {
		j.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	j.ran = true
	runID := uuid.NewString()
	j.log = j.opts.Logger.With("run_id", runID, "model", j.opts.Model.Name)
	j.mu.Unlock()

	start := time.Now()
	j.log.Info("Preparing table update", "service", j.opts.Service)

	res, err := j.run(ctx)
	if err != nil {
		j.fail(err)
		return nil, err
	}
	res.RunID = runID
	res.Duration = time.Since(start)
	if err := j.transition(Completed); err != nil {
		return nil, err
	}
	j.summarize(res)
	return res, nil
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	from := j.state
	if !IsTerminal(from) {
		j.state = Failed
	}
	j.mu.Unlock()
	j.log.Error("Sync failed", "stage", Stage(err), "state", from.String(), "error", err)
}

func (j *Job) run(ctx context.Context) (*Result, error) {
	if err := j.transition(ResolvingURL); err != nil {
		return nil, err
	}
	fileURL, err := j.resolver.LatestURL(ctx, j.opts.Model)
	if err != nil {
		return nil, &LookupError{Err: err}
	}
	j.log.Info("Resolved latest file", "url", redact(fileURL))

	if err := j.transition(Authenticating); err != nil {
		return nil, err
	}
	token, err := j.auth.Token(ctx)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if token == "" {
		return nil, &AuthError{Err: auth.ErrEmptyToken}
	}

	if err := j.transition(Downloading); err != nil {
		return nil, err
	}
	resp, err := j.fetcher.Open(ctx, auth.FileRequest(fileURL, token))
	if err != nil {
		return nil, &StreamError{Err: err}
	}
	defer resp.Body.Close()
	j.log.Debug("Download started", "content_length", resp.ContentLength, "content_type", resp.ContentType)

	body := &trackingReader{r: resp.Body}
	var src io.Reader = body

	var cp *archive.Copy
	if j.opts.Archiver != nil {
		cp, err = j.opts.Archiver.Begin(ctx, fileURL, resp.ContentType)
		if err != nil {
			return nil, &ArchiveError{Err: err}
		}
		defer cp.Abort()
		src = io.TeeReader(src, cp)
	}

	var rep *progress.Reporter
	if j.opts.Progress {
		rep = progress.NewReporter(progress.Options{
			TotalSize: resp.ContentLength,
			Output:    j.opts.ProgressOutput,
			SourceURL: redact(fileURL),
		})
		rep.Start()
		defer rep.Stop()
		src = rep.Reader(src)
	}

	if err := j.transition(Parsing); err != nil {
		return nil, err
	}
	records, err := j.parse(src, rep)
	if err != nil {
		return nil, classify(err, body, cp)
	}

	res := &Result{URL: fileURL, Records: records, Bytes: body.n}
	if cp != nil {
		if err := cp.Commit(); err != nil {
			return nil, &ArchiveError{Err: err}
		}
		res.ArchiveKey = cp.Key()
		j.log.Info("Archived download", "key", cp.Key(), "bytes", cp.Written())
	}
	return res, nil
}

func (j *Job) parse(src io.Reader, rep *progress.Reporter) ([]model.Record, error) {
	p, err := csvparse.New(src, csvparse.Options{
		SkipRows: j.opts.Model.HeaderRows,
		Trim:     true,
		Columns:  j.opts.Model.Columns,
	})
	if err != nil {
		return nil, err
	}

	var records []model.Record
	for {
		row, err := p.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, model.Decode(row))
		if rep != nil {
			rep.RowParsed()
		}
	}
}

// classify attributes a failure during parsing to the stage that caused it.
// An archive write failure surfaces through the tee, a transport failure
// through the body, and anything else is the content itself.
func classify(err error, body *trackingReader, cp *archive.Copy) error {
	if cp != nil && cp.Err() != nil {
		return &ArchiveError{Err: cp.Err()}
	}
	if body.err != nil {
		return &StreamError{Err: body.err}
	}
	return &ParseError{Err: err}
}

func (j *Job) summarize(res *Result) {
	attrs := []any{
		"count", len(res.Records),
		"bytes", res.Bytes,
		"duration", res.Duration.Round(time.Millisecond).String(),
	}
	if first, ok := res.First(); ok {
		last, _ := res.Last()
		attrs = append(attrs, "first_id", first.CEPR, "last_id", last.CEPR)
	}
	j.log.Info("Records parsed", attrs...)

	n := j.opts.SampleSize
	if n < 0 {
		return
	}
	if n > len(res.Records) {
		n = len(res.Records)
	}
	if n > 0 {
		j.log.Debug("Record sample", "records", res.Records[:n])
	}
}

// trackingReader remembers the first non-EOF read error and counts bytes.
type trackingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.n += int64(n)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// redact drops the query string, which commonly carries signed credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalSize is the expected size of the stream in bytes.
	// Values <= 0 mean the size is unknown.
	TotalSize int64

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// SourceURL is the URL being streamed (for display).
	SourceURL string
}

// Reporter outputs human-readable progress while a stream is consumed.
type Reporter struct {
	opts Options

	mu        sync.Mutex
	bytesRead atomic.Int64
	rows      atomic.Int64
	startTime time.Time
	lastTick  time.Time
	lastBytes int64
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	stopped   bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastTick = r.startTime

	fmt.Fprintf(r.opts.Output, "[csvsync] Streaming: %s\n", r.opts.SourceURL)
	if r.opts.TotalSize > 0 {
		fmt.Fprintf(r.opts.Output, "[csvsync] Total size: %s\n", FormatBytes(r.opts.TotalSize))
	}

	go r.updateLoop()
}

// Stop stops the reporter and prints the final status. It blocks until the
// update loop has exited and is safe to call more than once.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)
	if started {
		<-r.doneCh
	}
}

// Add records n bytes consumed from the stream.
func (r *Reporter) Add(n int64) {
	r.bytesRead.Add(n)
}

// RowParsed records one parsed data row.
func (r *Reporter) RowParsed() {
	r.rows.Add(1)
}

// BytesRead returns the number of bytes recorded so far.
func (r *Reporter) BytesRead() int64 {
	return r.bytesRead.Load()
}

// Rows returns the number of rows recorded so far.
func (r *Reporter) Rows() int64 {
	return r.rows.Load()
}

// Reader wraps src so that every byte read from it is counted.
func (r *Reporter) Reader(src io.Reader) io.Reader {
	return &countingReader{r: src, reporter: r}
}

type countingReader struct {
	r        io.Reader
	reporter *Reporter
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.reporter.Add(int64(n))
	}
	return n, err
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	read := r.bytesRead.Load()

	elapsed := now.Sub(r.lastTick).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(read-r.lastBytes) / elapsed

	r.lastTick = now
	r.lastBytes = read

	if r.opts.TotalSize > 0 {
		percent := float64(read) / float64(r.opts.TotalSize) * 100
		fmt.Fprintf(r.opts.Output, "\r[csvsync] Progress: %.1f%% | %s / %s | Speed: %s/s | Rows: %d    ",
			percent,
			FormatBytes(read),
			FormatBytes(r.opts.TotalSize),
			FormatBytes(int64(speed)),
			r.rows.Load(),
		)
		return
	}
	fmt.Fprintf(r.opts.Output, "\r[csvsync] Progress: %s | Speed: %s/s | Rows: %d    ",
		FormatBytes(read),
		FormatBytes(int64(speed)),
		r.rows.Load(),
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	read := r.bytesRead.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(read) / max(duration.Seconds(), 0.001)

	fmt.Fprintf(r.opts.Output, "\r[csvsync] Streamed: %s | Rows: %d    \n", FormatBytes(read), r.rows.Load())
	fmt.Fprintf(r.opts.Output, "[csvsync] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
	)
}

var binaryUnits = []string{"KiB", "MiB", "GiB", "TiB"}

// FormatBytes formats bytes as a human-readable string using binary units.
// Values below ten keep one decimal place.
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	v := float64(b)
	unit := ""
	for _, u := range binaryUnits {
		v /= 1024
		unit = u
		if v < 1024 {
			break
		}
	}
	if v < 10 {
		return fmt.Sprintf("%.1f %s", v, unit)
	}
	return fmt.Sprintf("%.0f %s", v, unit)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

var byteSuffixes = []struct {
	suffix     string
	multiplier float64
}{
	// Longest suffixes first so "KiB" is not taken for "B".
	{"TiB", 1 << 40},
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"TB", 1e12},
	{"GB", 1e9},
	{"MB", 1e6},
	{"KB", 1e3},
	{"B", 1},
}

// ParseBytes parses a human-readable byte string (e.g., "8MiB" or "10MB").
// IEC suffixes are powers of 1024, SI suffixes powers of 1000.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	multiplier := 1.0
	for _, bs := range byteSuffixes {
		if strings.HasSuffix(s, bs.suffix) {
			multiplier = bs.multiplier
			s = strings.TrimSpace(strings.TrimSuffix(s, bs.suffix))
			break
		}
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}

	return int64(value * multiplier), nil
}

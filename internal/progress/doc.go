// Package progress provides progress reporting while a CSV stream is consumed.
//
// The reporter counts bytes pulled through [Reporter.Reader] and rows
// recorded with [Reporter.RowParsed], and periodically prints a status line.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalSize: resp.ContentLength,
//	    SourceURL: url,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	body := reporter.Reader(resp.Body)
//
// # Output Format
//
//	[csvsync] Streaming: https://vault.example.com/files/export.csv
//	[csvsync] Total size: 2.5 GiB
//	[csvsync] Progress: 45.2% | 1.1 GiB / 2.5 GiB | Speed: 40 MiB/s | Rows: 1203311
package progress

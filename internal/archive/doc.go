// Package archive keeps a copy of the raw export stream in object storage.
//
// Archiving is optional. When enabled, the download body is teed into a
// blob writer while the CSV parser consumes it, so the export is stored
// without a second request and without buffering the file in memory.
// The bucket is storage-agnostic via gocloud.dev/blob.
//
// # Usage
//
//	a, err := archive.Open(ctx, "s3://raw-exports", archive.Options{Prefix: "cepr/"})
//	defer a.Close()
//
//	cp, err := a.Begin(ctx, url, resp.ContentType)
//	body := io.TeeReader(resp.Body, cp)
//	// ... consume body ...
//	if err != nil {
//	    cp.Abort()
//	} else {
//	    err = cp.Commit()
//	}
//
// # Storage Layout
//
//	{bucket}/{prefix}{yyyy}/{mm}/{dd}/{source file name}
package archive

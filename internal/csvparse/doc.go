// Package csvparse decodes a CSV byte stream into named rows.
//
// The parser pulls bytes from its reader only as rows are requested, so
// memory stays bounded regardless of the stream size. Rows come out in
// stream order; [Parser.Next] returns io.EOF once the upstream reader ends.
//
// # Usage
//
//	p, err := csvparse.New(body, csvparse.Options{
//	    SkipRows: 1,
//	    Trim:     true,
//	    Columns:  []string{"cepr", "dob", "dtr"},
//	})
//	for {
//	    row, err := p.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    use(row.Get("cepr"))
//	}
package csvparse

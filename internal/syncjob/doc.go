// Package syncjob runs one export sync: it resolves the newest export URL
// from the database, authenticates, streams the CSV download and parses it
// into records.
//
// A run moves through Idle, ResolvingURL, Authenticating, Downloading,
// Parsing and Completed. Any failure moves it to Failed, discards the
// records parsed so far and returns a typed stage error.
//
// # Usage
//
//	job := syncjob.New(store, authenticator, client, syncjob.Options{
//	    Model:  model.CEPR,
//	    Logger: logger,
//	})
//	res, err := job.Run(ctx)
//	if err != nil {
//	    var se *syncjob.StreamError
//	    if errors.As(err, &se) {
//	        // download failed
//	    }
//	    return err
//	}
//	fmt.Println(len(res.Records))
package syncjob

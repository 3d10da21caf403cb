/*
Package fetcher downloads the monthly trip record files into a local folder.

Files are named "{dataset}_{YYYY}-{MM}.parquet" both remotely and on disk. A file that
is already present is never requested again, so a run can be repeated safely. Each
download is written to a ".part" file first and renamed once complete.

# Basic Usage

	f := fetcher.New(fetcher.NewClient(time.Minute), fetcher.Options{
	    Dir:       "histo_data_files",
	    StartYear: 2019,
	    Delay:     time.Second,
	}, fetcher.WithLogger(logger))

	sum, err := f.Run(ctx)

The Client can be used on its own to grab a single file:

	n, err := fetcher.NewClient(0).Download(ctx, fetcher.DefaultZonesURL, "taxi_zone_lookup.csv")
	if errors.Is(err, fetcher.ErrStatus) {
	    // the server answered with something other than 200
	}
*/
package fetcher

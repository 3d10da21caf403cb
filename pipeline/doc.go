/*
Package pipeline runs the extract, transform and load stages over a folder of trip files.

Each stage call catches its own errors and panics, logs them to the stage log and returns
a sentinel (a nil frame or false), so one bad file never stops the others.

# Basic Usage

	p := pipeline.New(extractor, zones.FileLoader{Path: "taxi_zone_lookup.csv"}, nil, sk,
	    pipeline.WithLoggers(logs),
	    pipeline.WithOutputDir("data_loaded"),
	)
	stats, err := p.Run(ctx, "histo_data_files")
*/
package pipeline

package metrics

// Shared histogram bucket layouts.
var (
	// DurationBuckets covers sub-millisecond bookkeeping up to a few seconds.
	DurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

	// ProvingBuckets covers circuit jobs, which run from milliseconds (simulated) to tens of minutes.
	ProvingBuckets = []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300, 600, 1800}

	// CountBuckets is used for batch sizes and fan-out.
	CountBuckets = []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024}
)

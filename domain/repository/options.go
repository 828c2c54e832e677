package repository

// WithName filters by the name a fit was stored under.
func WithName(name string) Option {
	return WithCondition("name", name)
}

// WithNames filters by any of the given fit names.
func WithNames(names ...string) Option {
	return WithConditionIn("name", names)
}

// WithRunID filters by sweep run.
func WithRunID(runID string) Option {
	return WithCondition("run_id", runID)
}

// WithJob filters by sweep job name.
func WithJob(job string) Option {
	return WithCondition("job", job)
}

// WithDatasetPath filters by the spectrum a fit was made against.
func WithDatasetPath(path string) Option {
	return WithCondition("dataset_path", path)
}

// WithMaxChiSquare keeps rows whose chi-square is at most chi2.
func WithMaxChiSquare(chi2 float64) Option {
	return WithAtMost("chi_square", chi2)
}

// BestFirst orders by ascending chi-square.
func BestFirst() Option {
	return WithOrderAsc("chi_square")
}

package classify

// Params controls the classifier search.
type Params struct {
	// MinConfirm is how many consecutive triplets must validate before a
	// candidate is accepted: the first match plus MinConfirm-1 beyond it.
	// Evidence shorter than MinConfirm must validate completely.
	MinConfirm int

	// MaxBits is the largest rotation amount tried (1..MaxBits).
	MaxBits int

	// Combinations enables the rotate-then-XOR fallback family.
	Combinations bool

	// Parallel runs every candidate concurrently and picks the first
	// confirmed one in candidate order.
	Parallel bool

	// Workers bounds concurrent trials in parallel mode (0 = unbounded).
	Workers int
}

// DefaultParams returns the standard search: every family, five-triplet
// confirmation, sequential trials.
func DefaultParams() Params {
	return Params{
		MinConfirm:   5,
		MaxBits:      7,
		Combinations: true,
	}
}

// WithMinConfirm returns a copy of params with a different confirmation run.
func (p Params) WithMinConfirm(n int) Params {
	if n < 1 {
		n = 1
	}
	p.MinConfirm = n
	return p
}

// WithParallel returns a copy of params with parallel trials toggled.
func (p Params) WithParallel(on bool, workers int) Params {
	p.Parallel = on
	p.Workers = workers
	return p
}

// WithCombinations returns a copy of params with the combination family toggled.
func (p Params) WithCombinations(on bool) Params {
	p.Combinations = on
	return p
}

func (p Params) normalized() Params {
	if p.MinConfirm < 1 {
		p.MinConfirm = 1
	}
	if p.MaxBits < 1 || p.MaxBits > 7 {
		p.MaxBits = 7
	}
	if p.Workers < 0 {
		p.Workers = 0
	}
	return p
}

package repository

// Option applies a configuration option to the SortedStore.
type Option func(*SortedStore)

// WithCapacity preallocates room for n participants.
func WithCapacity(n int) Option {
	return func(s *SortedStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

package offline

// Observer receives counters from the request path.
type Observer interface {
	CacheHit(partition string)
	CacheMiss()
	NetworkFailure()
	Fallback(kind string)
	CacheWriteFailed(partition string)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)         {}
func (nopObserver) CacheMiss()              {}
func (nopObserver) NetworkFailure()         {}
func (nopObserver) Fallback(string)         {}
func (nopObserver) CacheWriteFailed(string) {}

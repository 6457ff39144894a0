package newstext

// URLCounter estimates how many distinct URLs have been observed.
type URLCounter interface {
	Observe(url string)
	Estimate() uint64
}

package rate

import "time"

// Window represents a provider rate-limit bucket.
type Window int

const (
	Minute Window = iota
	Hour
)

func (w Window) String() string {
	switch w {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	default:
		return "unknown"
	}
}

func (w Window) Duration() time.Duration {
	switch w {
	case Hour:
		return time.Hour
	default:
		return time.Minute
	}
}

// Declaration defines a provider's request budget.
type Declaration struct {
	provider string
	limits   map[Window]int
}

// Provider creates a new declaration for a provider.
func Provider(name string) Declaration {
	return Declaration{provider: name}
}

func (d Declaration) ProviderName() string {
	return d.provider
}

// MaxRequestsPer caps requests in window. A non-positive limit leaves the window unlimited.
func (d Declaration) MaxRequestsPer(window Window, limit int) Declaration {
	limits := make(map[Window]int, len(d.limits)+1)
	for w, l := range d.limits {
		limits[w] = l
	}
	if limit > 0 {
		limits[window] = limit
	} else {
		delete(limits, window)
	}
	d.limits = limits
	return d
}

func (d Declaration) Limits() map[Window]int {
	return d.limits
}

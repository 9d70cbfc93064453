package acapi

import "fmt"

// PortRange is a half-open port interval [Start, End).
type PortRange struct {
	Start int
	End   int
}

// DefaultPortRange is the range Archicad picks its API port from.
var DefaultPortRange = PortRange{Start: 19723, End: 19744}

// Contains reports whether port lies inside the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.Start && port < r.End
}

// Ports lists every port in the range in ascending order.
func (r PortRange) Ports() []int {
	if r.End <= r.Start {
		return nil
	}
	ports := make([]int, 0, r.End-r.Start)
	for p := r.Start; p < r.End; p++ {
		ports = append(ports, p)
	}
	return ports
}

func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Advise returns a warning message for ports outside the range, or "".
func (r PortRange) Advise(port int) string {
	if r.Contains(port) {
		return ""
	}
	return fmt.Sprintf("port %d is not in default range %s", port, r)
}

// InDefaultRange reports whether port is one Archicad would normally listen on.
func InDefaultRange(port int) bool {
	return DefaultPortRange.Contains(port)
}

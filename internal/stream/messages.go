package stream

// Hello is the minimal handshake message that opens a stream.
type Hello struct {
	Protocol string `json:"protocol"`
	Producer string `json:"producer"`
	Build    string `json:"build,omitempty"`
}

// NewHello stamps the protocol name onto a handshake.
func NewHello(producer, build string) Hello {
	return Hello{Protocol: "GrimStream", Producer: producer, Build: build}
}

// CoverageCounter is a coverage delta or snapshot entry.
type CoverageCounter struct {
	Key   string `json:"key"`
	Value uint64 `json:"value"`
}

// StateUpdate is the run-time state delta published by the host.
// Seq and HostTimeNS are assigned by the server on send.
type StateUpdate struct {
	Seq           uint64            `json:"seq"`
	HostTimeNS    uint64            `json:"host_time_ns"`
	Frame         *uint32           `json:"frame,omitempty"`
	Position      *[3]float64       `json:"position,omitempty"`
	Yaw           *float64          `json:"yaw,omitempty"`
	ActiveSetup   string            `json:"active_setup,omitempty"`
	ActiveHotspot string            `json:"active_hotspot,omitempty"`
	Coverage      []CoverageCounter `json:"coverage,omitempty"`
	Events        []string          `json:"events,omitempty"`
}

// Control is an inbound control-plane message from the viewer.
// The only type understood today is "viewer_ready".
type Control struct {
	Type     string   `json:"type"`
	Protocol uint16   `json:"protocol,omitempty"`
	Features []string `json:"features,omitempty"`
}

// ControlViewerReady gates outbound publishing on the viewer.
const ControlViewerReady = "viewer_ready"

// MovieStart announces a fullscreen movie to the viewer.
type MovieStart struct {
	Name    string `json:"name"`
	Looping bool   `json:"looping,omitempty"`
}

// MovieControl is the viewer's response on the movie channel.
type MovieControl struct {
	Action string `json:"action"`
	Name   string `json:"name,omitempty"`
}

// MovieControlEvent tags a movie response with the connection generation
// it arrived on, so responses from a stale viewer can be discarded.
type MovieControlEvent struct {
	Generation uint64
	Control    MovieControl
}

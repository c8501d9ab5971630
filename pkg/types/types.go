package types

// Kind identifies the category of a normalized record.
type Kind string

const (
	KindNode       Kind = "node"
	KindContainers Kind = "containers"
	KindMedia      Kind = "media"
	KindVM         Kind = "vm"
	KindRaw        Kind = "raw"
)

// Valid reports whether k is one of the known record kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindNode, KindContainers, KindMedia, KindVM, KindRaw:
		return true
	}
	return false
}

// Record is implemented by every normalized status value.
// The unexported method keeps the set closed to this package.
type Record interface {
	Kind() Kind
	isRecord()
}

// NodeStatus is the normalized status of one hypervisor node.
// CPUPercent is clamped to [0, 100]; MemoryUsedBytes never exceeds
// MemoryTotalBytes when both are present.
type NodeStatus struct {
	Online           bool     `json:"online"`
	CPUPercent       *float64 `json:"cpu_percent"`
	MemoryUsedBytes  *int64   `json:"memory_used_bytes"`
	MemoryTotalBytes *int64   `json:"memory_total_bytes"`
}

func (NodeStatus) Kind() Kind { return KindNode }
func (NodeStatus) isRecord()  {}

// Container is one entry of the container host's status list.
type Container struct {
	Name       string  `json:"name"`
	Running    bool    `json:"running"`
	StatusText string  `json:"status_text"`
	UptimeText *string `json:"uptime_text"`
}

// ContainerList is the normalized container host response.
type ContainerList []Container

func (ContainerList) Kind() Kind { return KindContainers }
func (ContainerList) isRecord()  {}

// Running returns how many containers in l are running.
func (l ContainerList) Running() int {
	n := 0
	for _, c := range l {
		if c.Running {
			n++
		}
	}
	return n
}

// Session is one active media-server stream.
type Session struct {
	Title           string   `json:"title"`
	User            string   `json:"user"`
	Device          *string  `json:"device"`
	ProgressPercent *float64 `json:"progress_percent"`
}

// SessionList is the normalized media-server activity feed.
// An empty list means "no active streams", not an error.
type SessionList []Session

func (SessionList) Kind() Kind { return KindMedia }
func (SessionList) isRecord()  {}

// VMPowerState is the power state of one virtual machine.
type VMPowerState struct {
	VMID      string `json:"vmid"`
	Online    bool   `json:"online"`
	RawStatus string `json:"raw_status"`
}

func (VMPowerState) Kind() Kind { return KindVM }
func (VMPowerState) isRecord()  {}

// Raw carries an unstructured upstream response for diagnostic sources.
type Raw struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func (Raw) Kind() Kind { return KindRaw }
func (Raw) isRecord()  {}

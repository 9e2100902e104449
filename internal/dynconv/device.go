package dynconv

// DeviceType represents the hardware device used for computation.
type DeviceType int

const (
	CPU DeviceType = iota
)

func (t DeviceType) String() string {
	if t == CPU {
		return "cpu"
	}
	return "unknown"
}

// Device owns the memory a convolution runs in. Transfer makes a buffer
// resident on the device and must be deterministic.
type Device interface {
	Type() DeviceType
	IsAvailable() bool
	Transfer(src []float64) []float64
}

// CPUDevice handles computations on the host CPU. Host buffers are already
// resident, so Transfer is the identity.
type CPUDevice struct{}

func (d *CPUDevice) Type() DeviceType                 { return CPU }
func (d *CPUDevice) IsAvailable() bool                { return true }
func (d *CPUDevice) Transfer(src []float64) []float64 { return src }

// GetDefaultDevice returns the device used by the package-level functions.
func GetDefaultDevice() Device {
	return &CPUDevice{}
}

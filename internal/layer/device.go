package layer

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUDevice describes the host CPU that runs gonum's numeric kernels.
type CPUDevice struct{}

// Features lists the SIMD extensions relevant to gonum's assembly kernels.
func (d *CPUDevice) Features() []string {
	var f []string
	for _, c := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.SSE2, "sse2"},
		{cpuid.AVX, "avx"},
		{cpuid.AVX2, "avx2"},
		{cpuid.FMA3, "fma3"},
		{cpuid.AVX512F, "avx512f"},
		{cpuid.ASIMD, "asimd"},
	} {
		if cpuid.CPU.Supports(c.id) {
			f = append(f, c.name)
		}
	}
	return f
}

// String returns a one-line description such as
// "cpu: Intel(R) Xeon(R) (8 cores, amd64; avx avx2 fma3)".
func (d *CPUDevice) String() string {
	brand := strings.TrimSpace(cpuid.CPU.BrandName)
	if brand == "" {
		brand = "unknown"
	}
	cores := cpuid.CPU.LogicalCores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	s := fmt.Sprintf("cpu: %s (%d cores, %s", brand, cores, runtime.GOARCH)
	if f := d.Features(); len(f) > 0 {
		s += "; " + strings.Join(f, " ")
	}
	return s + ")"
}

// GetDefaultDevice returns the device used for training. Only the CPU is
// supported.
func GetDefaultDevice() *CPUDevice {
	return &CPUDevice{}
}

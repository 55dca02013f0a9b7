package cost

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectHardwareProfile(t *testing.T) {
	profile := DetectHardwareProfile()

	assert.NotNil(t, profile, "profile should not be nil")
	assert.Equal(t, runtime.GOOS, profile.OS, "OS should match runtime")
	assert.Equal(t, runtime.GOARCH, profile.Architecture, "architecture should match runtime")
	assert.Equal(t, runtime.NumCPU(), profile.CPUCores, "CPU cores should match runtime")
	assert.Greater(t, profile.CPUSpeed, 0.0)
	assert.Greater(t, profile.DiskIO, 0.0)
	assert.False(t, profile.MeasuredAt.IsZero())
}

func TestDetectCloudEnvironment(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("AZURE_RESOURCE_GROUP", "")
	assert.False(t, detectCloudEnvironment(), "should not detect cloud environment without env vars")

	t.Setenv("AWS_REGION", "us-east-1")
	assert.True(t, detectCloudEnvironment())
}

func TestCalculateCostFactors_Baseline(t *testing.T) {
	profile := NewHardwareProfile(4, 2.4, "SSD")
	factors := profile.CalculateCostFactors()

	assert.InDelta(t, 0.1, factors.IOFactor, 1e-9)
	assert.InDelta(t, 0.01, factors.CPUFactor, 1e-9)
	assert.InDelta(t, 0.001, factors.MemoryFactor, 1e-9)
}

func TestCalculateCostFactors_FasterHardwareIsCheaper(t *testing.T) {
	base := NewHardwareProfile(4, 2.4, "SSD").CalculateCostFactors()
	fast := NewHardwareProfile(16, 2.4, "NVMe").CalculateCostFactors()
	slow := NewHardwareProfile(2, 2.4, "HDD").CalculateCostFactors()

	assert.Less(t, fast.CPUFactor, base.CPUFactor)
	assert.Less(t, fast.IOFactor, base.IOFactor)
	assert.Greater(t, slow.CPUFactor, base.CPUFactor)
	assert.Greater(t, slow.IOFactor, base.IOFactor)
}

func TestCalculateCostFactors_Cloud(t *testing.T) {
	profile := NewHardwareProfile(4, 2.4, "SSD")
	profile.IsCloudEnv = true
	assert.InDelta(t, 0.15, profile.CalculateCostFactors().IOFactor, 1e-9)
}

func TestNormalizeCPUSpeed(t *testing.T) {
	assert.InDelta(t, 1.0, normalizeCPUSpeed(4, 2.4), 1e-9)
	assert.InDelta(t, 2.0, normalizeCPUSpeed(8, 2.4), 1e-9)
	assert.Equal(t, 1.0, normalizeCPUSpeed(0, 2.4))
}

func TestEstimateDiskIO(t *testing.T) {
	assert.Equal(t, 3500.0, estimateDiskIO("nvme"))
	assert.Equal(t, 500.0, estimateDiskIO("SSD"))
	assert.Equal(t, 100.0, estimateDiskIO("HDD"))
	assert.Equal(t, 500.0, estimateDiskIO("tape"))
}

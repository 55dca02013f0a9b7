package cost

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// HardwareProfile 硬件配置文件
// 基于实际硬件动态调整成本因子
type HardwareProfile struct {
	// CPU相关
	CPUCores     int     // CPU核心数
	CPUFrequency float64 // CPU频率（GHz）
	CPUSpeed     float64 // CPU速度（相对值，基准1.0）

	// 内存相关
	MemorySpeed float64 // 内存速度（相对值，基准1.0）

	// 磁盘相关
	DiskType string  // 磁盘类型: "SSD", "HDD", "NVMe"
	DiskIO   float64 // 磁盘IO速度（MB/s）

	// 系统相关
	OS           string
	Architecture string

	MeasuredAt time.Time
	IsCloudEnv bool
}

// DetectHardwareProfile 自动检测硬件配置
func DetectHardwareProfile() *HardwareProfile {
	profile := &HardwareProfile{
		MeasuredAt:   time.Now(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		IsCloudEnv:   detectCloudEnvironment(),
	}

	profile.CPUCores = runtime.NumCPU()
	profile.CPUFrequency = estimateCPUFrequency()
	profile.CPUSpeed = normalizeCPUSpeed(profile.CPUCores, profile.CPUFrequency)
	profile.MemorySpeed = 1.0

	profile.DiskType = detectDiskType()
	profile.DiskIO = estimateDiskIO(profile.DiskType)

	return profile
}

// NewHardwareProfile 按给定参数构造，用于配置文件或测试
func NewHardwareProfile(cores int, frequency float64, diskType string) *HardwareProfile {
	return &HardwareProfile{
		CPUCores:     cores,
		CPUFrequency: frequency,
		CPUSpeed:     normalizeCPUSpeed(cores, frequency),
		MemorySpeed:  1.0,
		DiskType:     diskType,
		DiskIO:       estimateDiskIO(diskType),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		MeasuredAt:   time.Now(),
	}
}

// detectCloudEnvironment 检查云厂商的环境变量
func detectCloudEnvironment() bool {
	envVars := []string{"AWS_REGION", "GOOGLE_CLOUD_PROJECT", "AZURE_RESOURCE_GROUP"}
	for _, env := range envVars {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return false
}

// estimateCPUFrequency 估算CPU频率（简化）
func estimateCPUFrequency() float64 {
	return 2.4
}

// normalizeCPUSpeed 标准化CPU速度
func normalizeCPUSpeed(cores int, frequency float64) float64 {
	// 基准: 4核 @ 2.4GHz = 1.0
	benchmarkCores := 4
	benchmarkFreq := 2.4

	if cores <= 0 || frequency <= 0 {
		return 1.0
	}
	capacity := float64(cores) * frequency
	benchmarkCapacity := float64(benchmarkCores) * benchmarkFreq

	return capacity / benchmarkCapacity
}

// detectDiskType 检测磁盘类型
func detectDiskType() string {
	// 简化：默认SSD
	return "SSD"
}

// estimateDiskIO 估算磁盘IO速度（MB/s）
func estimateDiskIO(diskType string) float64 {
	switch strings.ToUpper(diskType) {
	case "NVME":
		return 3500.0
	case "SSD":
		return 500.0
	case "HDD":
		return 100.0
	default:
		return 500.0
	}
}

// AdaptiveCostFactor 自适应成本因子
type AdaptiveCostFactor struct {
	IOFactor     float64 // IO成本因子
	CPUFactor    float64 // CPU成本因子
	MemoryFactor float64 // 内存成本因子
}

// CalculateCostFactors 计算自适应成本因子
func (hp *HardwareProfile) CalculateCostFactors() *AdaptiveCostFactor {
	factor := &AdaptiveCostFactor{}

	// IO因子 基准: SSD @ 500MB/s = 0.1
	baseDiskIO := 500.0
	factor.IOFactor = 0.1 * (baseDiskIO / hp.DiskIO)

	// CPU因子 基准: 4核 @ 2.4GHz = 0.01
	factor.CPUFactor = 0.01 / hp.CPUSpeed

	// 内存因子 基准: 1.0 = 0.001
	factor.MemoryFactor = 0.001 * hp.MemorySpeed

	if hp.IsCloudEnv {
		// 云盘的 IO 通常更慢
		factor.IOFactor *= 1.5
	}

	return factor
}

// String 返回硬件配置的字符串表示
func (hp *HardwareProfile) String() string {
	return fmt.Sprintf(
		"CPU: %d cores @ %.2fGHz, Disk: %s @ %.2fMB/s",
		hp.CPUCores, hp.CPUFrequency, hp.DiskType, hp.DiskIO,
	)
}

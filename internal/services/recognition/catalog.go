package recognition

import (
	"fmt"
	"strings"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

// ModelSize names a Whisper checkpoint
type ModelSize string

const (
	ModelTiny    ModelSize = "tiny"
	ModelBase    ModelSize = "base"
	ModelSmall   ModelSize = "small"
	ModelMedium  ModelSize = "medium"
	ModelLargeV2 ModelSize = "large-v2"
	ModelLargeV3 ModelSize = "large-v3"
)

// DefaultModelSize is used when no size is requested
const DefaultModelSize = ModelLargeV3

// ModelSizes lists the supported sizes, smallest first
var ModelSizes = []ModelSize{ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLargeV2, ModelLargeV3}

// ComputeProfile is the numeric precision used for inference
type ComputeProfile string

const (
	ComputeInt8        ComputeProfile = "int8"
	ComputeInt8Float16 ComputeProfile = "int8_float16"
	ComputeFloat16     ComputeProfile = "float16"
	ComputeFloat32     ComputeProfile = "float32"
)

// ComputeProfiles lists the supported profiles
var ComputeProfiles = []ComputeProfile{ComputeInt8, ComputeInt8Float16, ComputeFloat16, ComputeFloat32}

// Device is where inference runs
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ParseModelSize validates a model size name. Empty selects DefaultModelSize.
func ParseModelSize(name string) (ModelSize, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultModelSize, nil
	}
	for _, size := range ModelSizes {
		if string(size) == name {
			return size, nil
		}
	}
	return "", apperrors.ConfigError("model", fmt.Sprintf("unknown model size %q (want one of %s)", name, JoinNames(ModelSizes)))
}

// ParseComputeProfile validates a compute profile name. Empty means "choose
// from hardware" and is returned as the empty profile.
func ParseComputeProfile(name string) (ComputeProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	for _, profile := range ComputeProfiles {
		if string(profile) == name {
			return profile, nil
		}
	}
	return "", apperrors.ConfigError("compute_type", fmt.Sprintf("unknown compute profile %q (want one of %s)", name, JoinNames(ComputeProfiles)))
}

// ParseDevice validates a device name. Empty means auto.
func ParseDevice(name string) (Device, error) {
	switch Device(strings.TrimSpace(name)) {
	case "", DeviceAuto:
		return DeviceAuto, nil
	case DeviceCPU:
		return DeviceCPU, nil
	case DeviceCUDA:
		return DeviceCUDA, nil
	default:
		return "", apperrors.ConfigError("device", fmt.Sprintf("unknown device %q (want auto, cpu or cuda)", name))
	}
}

// JoinNames renders a list of named values as "a, b, c"
func JoinNames[T ~string](values []T) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

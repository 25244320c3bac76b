package hdr

import "go.uber.org/zap"

// Version classifies the running Windows release by which DisplayConfig
// payload generation it speaks.
type Version uint8

const (
	// Windows10 uses the legacy advanced-color payloads only.
	Windows10 Version = iota
	// Windows11 (pre-24H2) also uses the legacy payloads.
	Windows11
	// Windows11_24H2 and later support the dedicated HDR payloads.
	Windows11_24H2
)

// Build number thresholds for version classification.
const (
	buildWindows11     = 22000
	buildWindows1124H2 = 26100
)

func (v Version) String() string {
	switch v {
	case Windows11_24H2:
		return "Windows 11 24H2+"
	case Windows11:
		return "Windows 11"
	default:
		return "Windows 10"
	}
}

// UsesHdrState reports whether the OS supports the dedicated HDR
// get/set payload shapes.
func (v Version) UsesHdrState() bool { return v >= Windows11_24H2 }

// ParseBuildNumber maps an OS build number to a version class.
func ParseBuildNumber(build uint32) Version {
	switch {
	case build >= buildWindows1124H2:
		return Windows11_24H2
	case build >= buildWindows11:
		return Windows11
	default:
		return Windows10
	}
}

// DetectVersion queries the OS build number once at startup. On any
// failure it assumes the legacy payload generation, which every
// supported release understands.
func DetectVersion(logger *zap.Logger) Version {
	build, err := buildNumber()
	if err != nil {
		logger.Warn("OS version query failed, assuming legacy advanced color API",
			zap.Error(err))
		return Windows11
	}
	v := ParseBuildNumber(build)
	logger.Info("detected OS version",
		zap.Uint32("build", build),
		zap.Stringer("version", v))
	return v
}

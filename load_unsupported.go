//go:build ios || android || !(amd64 || arm64)

package cblgo

// Init reports ErrUnsupportedPlatform: libcblite cannot be loaded here.
// UseLibrary still accepts other backends.
func Init() error {
	return ErrUnsupportedPlatform
}

func setNativeLogCallback(LogLevel, func(LogDomain, LogLevel, string)) error {
	return ErrUnsupportedPlatform
}

func setNativeConsoleLevel(LogLevel) error {
	return ErrUnsupportedPlatform
}

package config

const (
	defaultConfigPath            = "~/.config/digistation/config.toml"
	defaultLogDir                = "~/.local/share/digistation/logs"
	defaultStateDir              = "~/.local/share/digistation"
	defaultIdentityPath          = "~/.config/digistation/station.toml"
	defaultDatabasePath          = "~/.local/share/digistation/session_images.db"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 60
	defaultBarcodeCommand        = "zbarimg"
	defaultBarcodeTimeoutSeconds = 30
	defaultBlurThreshold         = 100.0
	defaultBlurMaxDimension      = 1024
	defaultEventBuffer           = 256
	defaultSettleMillis          = 500
	defaultNotifyRequestTimeout  = 10
)

var (
	defaultRawExtensions     = []string{".cr2"}
	defaultDerivedExtensions = []string{".jpg"}
	// Evaluated in order; matches from every pattern are pooled before sorting.
	defaultCatalogPatterns = []string{`BRIT\d+`, `NLU\d+`, `ANHC\d+`, `UARK\d+`, `\d+`}
	defaultIgnorePatterns  = []string{"*.JSON", "*.json", "*.log", ".*", "*.tmp", "*.lock"}
	defaultBarcodeArgs     = []string{"--quiet"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Station: Station{
			IdentityPath: defaultIdentityPath,
		},
		Capture: Capture{
			RawExtensions:     cloneStrings(defaultRawExtensions),
			DerivedExtensions: cloneStrings(defaultDerivedExtensions),
			CatalogPatterns:   cloneStrings(defaultCatalogPatterns),
			IgnorePatterns:    cloneStrings(defaultIgnorePatterns),
			EventBuffer:       defaultEventBuffer,
			SettleMillis:      defaultSettleMillis,
		},
		Barcode: Barcode{
			Command:        defaultBarcodeCommand,
			Args:           cloneStrings(defaultBarcodeArgs),
			TimeoutSeconds: defaultBarcodeTimeoutSeconds,
		},
		Blur: Blur{
			Enabled:      true,
			Threshold:    defaultBlurThreshold,
			MaxDimension: defaultBlurMaxDimension,
		},
		Database: Database{
			Path: defaultDatabasePath,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Session:        true,
			Collisions:     true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

func cloneStrings(values []string) []string {
	cp := make([]string, len(values))
	copy(cp, values)
	return cp
}

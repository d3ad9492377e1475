package config

const (
	defaultDataDir                = "~/.local/share/nemf-review"
	defaultImagesDir              = "~/.local/share/nemf-review/images"
	defaultCatalogDir             = "~/.local/share/nemf-review/catalog"
	defaultLogDir                 = "~/.local/share/nemf-review/logs"
	defaultAPIBind                = "127.0.0.1:5000"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLeaseSeconds           = 300
	defaultSweepIntervalSeconds   = 60
	defaultHistoryLimit           = 100
	defaultAdjacentWindow         = 5
	defaultReconcilePolicy        = PolicyPermissive
	defaultMaxDateDays            = 7
	defaultMaxDistanceKM          = 10.0
	defaultLookupCacheSeconds     = 300
	defaultMOBaseURL              = "https://mushroomobserver.org"
	defaultMOUserAgent            = "NEMF-Review-Tool/1.0"
	defaultMOTimeoutSeconds       = 30
	defaultMORequestsPerSecond    = 2.0
	defaultMOBurst                = 4
	defaultMOLicenseID            = 1
	defaultForayYear              = 2024
	defaultConfigRelativeLocation = "~/.config/nemf-review/config.toml"
	projectConfigName             = "nemf-review.toml"
)

// Reconciliation policies accepted by reconcile.policy.
const (
	PolicyPermissive = "permissive"
	PolicyStrict     = "strict"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			ImagesDir:  defaultImagesDir,
			CatalogDir: defaultCatalogDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Review: Review{
			LeaseSeconds:         defaultLeaseSeconds,
			SweepIntervalSeconds: defaultSweepIntervalSeconds,
			HistoryLimit:         defaultHistoryLimit,
			AdjacentWindow:       defaultAdjacentWindow,
		},
		Reconcile: Reconcile{
			Policy:             defaultReconcilePolicy,
			MaxDateDays:        defaultMaxDateDays,
			MaxDistanceKM:      defaultMaxDistanceKM,
			LookupCacheSeconds: defaultLookupCacheSeconds,
		},
		MushroomObserver: MushroomObserver{
			BaseURL:           defaultMOBaseURL,
			UserAgent:         defaultMOUserAgent,
			TimeoutSeconds:    defaultMOTimeoutSeconds,
			RequestsPerSecond: defaultMORequestsPerSecond,
			Burst:             defaultMOBurst,
			LicenseID:         defaultMOLicenseID,
		},
		Forays: Forays{
			Year: defaultForayYear,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

const (
	defaultLogDir          = "~/.local/share/subseek/logs"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultCacheBackend    = CacheBackendSQLite
	defaultLanguageFormat  = LanguageFormatAlpha2
	defaultEncoding        = "utf-8"
	defaultPoolTimeout     = 20
	defaultPoolMaxWorkers  = 4
	defaultPoolCooldown    = 60
	defaultFFprobeBinary   = "ffprobe"
	defaultHashMinSizeMB   = 10
	defaultUserAgent       = "subseek/dev"
	defaultPreferenceValue = PreferenceNeutral
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
	CacheBackendBolt   = "bolt"
)

// Preference values for hearing_impaired and foreign_only.
const (
	PreferencePrefer  = "prefer"
	PreferenceAvoid   = "avoid"
	PreferenceNeutral = "neutral"
)

// Language formats for saved subtitle file names.
const (
	LanguageFormatAlpha2 = "alpha2"
	LanguageFormatAlpha3 = "alpha3"
	LanguageFormatIETF   = "ietf"
)

// Provider and refiner names recognised in [providers] and [refiners].
var (
	KnownProviders = []string{"opensubtitles", "napiprojekt", "localdir"}
	KnownRefiners  = []string{"hash", "media"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Cache: Cache{
			Backend: defaultCacheBackend,
		},
		Download: Download{
			Languages:       []string{"en"},
			HearingImpaired: defaultPreferenceValue,
			ForeignOnly:     defaultPreferenceValue,
			Encoding:        defaultEncoding,
			LanguageFormat:  defaultLanguageFormat,
		},
		Pool: Pool{
			TimeoutSeconds:  defaultPoolTimeout,
			MaxWorkers:      defaultPoolMaxWorkers,
			CooldownMinutes: defaultPoolCooldown,
		},
		Providers: Providers{
			Enabled: []string{"opensubtitles", "napiprojekt"},
			OpenSubtitles: OpenSubtitles{
				UserAgent:     defaultUserAgent,
				DownloadCache: true,
			},
		},
		Refiners: Refiners{
			Enabled:       []string{"hash", "media"},
			FFprobeBinary: defaultFFprobeBinary,
			HashMinSizeMB: defaultHashMinSizeMB,
		},
	}
}

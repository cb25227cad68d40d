package config

const (
	defaultConfigPath       = "~/.config/deckport/config.toml"
	defaultManifestPath     = "~/.local/share/deckport/decks.json"
	defaultTopicsPath       = "~/.config/deckport/topics.json"
	defaultDataDir          = "~/.local/share/deckport"
	defaultLogDir           = "~/.local/share/deckport/logs"
	defaultSourceBaseURL    = "https://quizlet.com"
	defaultSourceUserAgent  = "deckport/dev"
	defaultSourceTimeout    = 30
	defaultSourceLabel      = "quizlet"
	defaultSectionSize      = 50
	defaultAssetChunkSize   = 200
	defaultCreatorID        = "deckport"
	defaultBlobBucket       = "deckport.local"
	defaultBlobBind         = "127.0.0.1:7488"
	defaultBlobPublicURL    = "http://127.0.0.1:7488"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ManifestPath: defaultManifestPath,
			TopicsPath:   defaultTopicsPath,
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
		},
		Source: Source{
			BaseURL:        defaultSourceBaseURL,
			UserAgent:      defaultSourceUserAgent,
			RequestTimeout: defaultSourceTimeout,
			Label:          defaultSourceLabel,
		},
		Import: Import{
			SectionSize:    defaultSectionSize,
			AssetChunkSize: defaultAssetChunkSize,
			CreatorID:      defaultCreatorID,
		},
		Blob: Blob{
			Bucket:        defaultBlobBucket,
			PublicBaseURL: defaultBlobPublicURL,
			Bind:          defaultBlobBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

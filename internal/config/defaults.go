package config

const (
	defaultConfigPath = "~/.config/unmark/config.toml"

	defaultUploadDir  = "/tmp/uploads"
	defaultOutputDir  = "/tmp/outputs"
	defaultScratchDir = "~/.cache/unmark/scratch"
	defaultStateDir   = "~/.local/share/unmark"
	defaultLogDir     = "~/.local/share/unmark/logs"

	defaultAPIBind             = "127.0.0.1:5000"
	defaultMaxUploadBytes      = 16 * 1024 * 1024
	defaultMaxVideoUploadBytes = 512 * 1024 * 1024

	defaultCheckpointDir        = "model"
	defaultBackendURL           = "http://127.0.0.1:8501"
	defaultMaskDir              = "model/masks"
	defaultModelTimeoutSeconds  = 120
	defaultWatermarkType        = "istock"
	defaultMaxDurationSeconds   = 60
	defaultFPS                  = 30
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultRedisAddr            = "127.0.0.1:6379"
	defaultRedisTTLHours        = 24
	defaultOutputMaxAgeHours    = 24
	defaultScratchMaxAgeHours   = 6
	defaultSweepIntervalMinutes = 30
	defaultNtfyTimeoutSeconds   = 10

	// EncoderFFmpeg reassembles frames with a plain libx264 encode.
	EncoderFFmpeg = "ffmpeg"
	// EncoderDrapto reassembles losslessly and hands the result to drapto.
	EncoderDrapto = "drapto"

	// ProgressSQLite keeps progress records in the task database.
	ProgressSQLite = "sqlite"
	// ProgressRedis keeps progress records in redis.
	ProgressRedis = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir:  defaultUploadDir,
			OutputDir:  defaultOutputDir,
			ScratchDir: defaultScratchDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		API: API{
			Bind:                defaultAPIBind,
			MaxUploadBytes:      defaultMaxUploadBytes,
			MaxVideoUploadBytes: defaultMaxVideoUploadBytes,
		},
		Model: Model{
			CheckpointDir:        defaultCheckpointDir,
			BackendURL:           defaultBackendURL,
			MaskDir:              defaultMaskDir,
			TimeoutSeconds:       defaultModelTimeoutSeconds,
			DefaultWatermarkType: defaultWatermarkType,
		},
		Video: Video{
			MaxDurationSeconds: defaultMaxDurationSeconds,
			DefaultFPS:         defaultFPS,
			Encoder:            EncoderFFmpeg,
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
		},
		Progress: Progress{
			Backend:       ProgressSQLite,
			RedisAddr:     defaultRedisAddr,
			RedisTTLHours: defaultRedisTTLHours,
		},
		Retention: Retention{
			OutputMaxAgeHours:    defaultOutputMaxAgeHours,
			ScratchMaxAgeHours:   defaultScratchMaxAgeHours,
			SweepIntervalMinutes: defaultSweepIntervalMinutes,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

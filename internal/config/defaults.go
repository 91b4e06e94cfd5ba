package config

const (
	defaultOutputDir            = "~/.local/share/soundsketch/output"
	defaultLogDir               = "~/.local/share/soundsketch/logs"
	defaultAPIBind              = "127.0.0.1:8000"
	defaultMaxUploadMB          = 100
	defaultWorkerCount          = 2
	defaultQueueCapacity        = 16
	defaultSeparationTimeout    = 900
	defaultTranscriptionTimeout = 300
	defaultNotationTimeout      = 120
	defaultPersistRetries       = 3
	defaultSeparationCommand    = "demucs"
	defaultSeparationModel      = "htdemucs"
	defaultTranscriptionCommand = "basic-pitch"
	defaultPythonCommand        = "python3"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds    = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

func defaultAllowedExtensions() []string {
	return []string{".mp3", ".wav", ".flac", ".m4a", ".ogg"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Server: Server{
			APIBind:           defaultAPIBind,
			MaxUploadMB:       defaultMaxUploadMB,
			AllowedExtensions: defaultAllowedExtensions(),
			CORSOrigins:       []string{"http://localhost:3000"},
		},
		Workflow: Workflow{
			WorkerCount:          defaultWorkerCount,
			QueueCapacity:        defaultQueueCapacity,
			SeparationTimeout:    defaultSeparationTimeout,
			TranscriptionTimeout: defaultTranscriptionTimeout,
			NotationTimeout:      defaultNotationTimeout,
			PersistRetries:       defaultPersistRetries,
		},
		Separation: Separation{
			Command: defaultSeparationCommand,
			Model:   defaultSeparationModel,
		},
		Transcription: Transcription{
			Command: defaultTranscriptionCommand,
		},
		Analysis: Analysis{
			PythonCommand: defaultPythonCommand,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

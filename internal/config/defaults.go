package config

const (
	defaultDataDir             = "~/.local/share/storyreel"
	defaultOutputDir           = "~/.local/share/storyreel/outputs"
	defaultLogDir              = "~/.local/share/storyreel/logs"
	defaultAPIBind             = "127.0.0.1:7040"
	defaultGeneratorURL        = "http://localhost:8000"
	defaultGeneratorTimeout    = 30
	defaultPollInterval        = 3
	defaultPollTimeout         = 10
	defaultPollConcurrency     = 4
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMReferer          = "https://github.com/storyreel/storyreel"
	defaultLLMTitle            = "Storyreel Script Analysis"
	defaultLLMTimeoutSeconds   = 60
	defaultLLMMaxAttempts      = 3
	defaultLLMRetryBackoffMS   = 1000
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Generator: Generator{
			URL:             defaultGeneratorURL,
			RequestTimeout:  defaultGeneratorTimeout,
			PollInterval:    defaultPollInterval,
			PollTimeout:     defaultPollTimeout,
			PollConcurrency: defaultPollConcurrency,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxAttempts:    defaultLLMMaxAttempts,
			RetryBackoffMS: defaultLLMRetryBackoffMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

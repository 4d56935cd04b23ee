package config

const (
	defaultDataDir    = "~/.local/share/quill/data"
	defaultImagesDir  = "~/.local/share/quill/images"
	defaultNotesDir   = "~/.local/share/quill/notes"
	defaultStagingDir = "~/.local/share/quill/staging"
	defaultLogDir     = "~/.local/share/quill/logs"

	defaultDeviceHost           = "192.168.1.139"
	defaultDevicePort           = 8089
	defaultDeviceRoot           = "/Note"
	defaultDeviceTimeoutSeconds = 15

	defaultExtractionModel = "gemma3:12b"
	defaultMetadataModel   = "qwen2.5:3b"
	defaultOllamaBaseURL   = "http://127.0.0.1:11434"
	defaultRemoteBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultRemoteTimeout   = 120

	defaultGatewayMaxRetries   = 2
	defaultGatewayRetryDelay   = 45
	defaultGatewayPacingDelay  = 30
	defaultConvertWorkers      = 0 // 0 = min(NumCPU, 4)
	defaultRemoteCallWorkers   = 1
	defaultRenderTool          = "supernote-tool"
	defaultRenderTimeout       = 120
	defaultWatchCheckInterval  = 60
	defaultWatchSyncDelayMin   = 60
	defaultWatchProbeTimeout   = 1
	defaultVaultFolder         = "Supernote"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			ImagesDir:  defaultImagesDir,
			NotesDir:   defaultNotesDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Device: Device{
			Host:           defaultDeviceHost,
			Port:           defaultDevicePort,
			Root:           defaultDeviceRoot,
			IgnoreDirs:     []string{"Work"},
			TimeoutSeconds: defaultDeviceTimeoutSeconds,
		},
		Models: Models{
			Extraction: defaultExtractionModel,
			Metadata:   defaultMetadataModel,
		},
		Ollama: Ollama{
			BaseURL: defaultOllamaBaseURL,
			Models:  []string{defaultExtractionModel, defaultMetadataModel},
		},
		Remote: Remote{
			BaseURL:        defaultRemoteBaseURL,
			TimeoutSeconds: defaultRemoteTimeout,
		},
		Gateway: Gateway{
			MaxRetries:         defaultGatewayMaxRetries,
			RetryDelaySeconds:  defaultGatewayRetryDelay,
			PacingDelaySeconds: defaultGatewayPacingDelay,
			ConvertWorkers:     defaultConvertWorkers,
			RemoteCallWorkers:  defaultRemoteCallWorkers,
		},
		Render: Render{
			Tool:           defaultRenderTool,
			TimeoutSeconds: defaultRenderTimeout,
		},
		Watch: Watch{
			CheckIntervalSeconds: defaultWatchCheckInterval,
			SyncDelayMinutes:     defaultWatchSyncDelayMin,
			ProbeTimeoutSeconds:  defaultWatchProbeTimeout,
		},
		Vault: Vault{
			Folder: defaultVaultFolder,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

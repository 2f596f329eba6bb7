package core

type Conf struct {
	Version              string `long:"version" description:"version of the engine server" env:"AFQMC_ENGINE_VERSION"`
	DevMode              bool   `long:"dev-mode" description:"run in dev mode" env:"AFQMC_ENGINE_DEV_MODE"`
	DisableStdoutLog     bool   `long:"disable-stdout-log" description:"do not log in standard output" env:"AFQMC_ENGINE_DISABLE_STDOUT_LOG"`
	EnableFileLog        bool   `long:"enable-file-log" description:"enable log in file" env:"AFQMC_ENGINE_ENABLE_FILE_LOG"`
	LogDir               string `long:"log-dir" description:"rotating log file dir" default:"./shares/logs" env:"AFQMC_ENGINE_LOG_DIR"`
	LogLevel             string `long:"log-level" description:"log level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" env:"AFQMC_ENGINE_LOG_LEVEL"`
	LogRotationMaxDays   int    `long:"log-rotation-max-days" description:"max days of log rotation" default:"7" env:"AFQMC_ENGINE_LOG_ROTATION_MAX_DAYS"`
	UseDummyBackend      bool   `long:"enable-dummy-backend" description:"use dummy circuit backend for tests and disable backend settings" env:"AFQMC_ENGINE_USE_DUMMY_BACKEND"`
	QueueMaxSize         int    `long:"queue-max-size" description:"queue max size" default:"100" env:"AFQMC_ENGINE_QUEUE_MAX_SIZE"`
	QueueRefillThreshold int    `long:"queue-refill-threshold" description:"queue refill threshold" default:"10" env:"AFQMC_ENGINE_QUEUE_REFILL_THRESHOLD"`
	MaxWorkers           int    `long:"max-workers" description:"max concurrent walker updates per run, 0 means one per CPU" default:"0" env:"AFQMC_ENGINE_MAX_WORKERS"`
	CheckpointDir        string `long:"checkpoint-dir" description:"run checkpoint file dir" default:"./shares/checkpoints" env:"AFQMC_ENGINE_CHECKPOINT_DIR"`
	IntegralsPath        string `long:"integrals-path" description:"molecular integrals file path, empty means the built-in minimal hydrogen system" env:"AFQMC_ENGINE_INTEGRALS_PATH"`
	SettingPath          string `long:"setting-path" description:"setting file path" default:"./setting/setting.toml" env:"AFQMC_ENGINE_SETTING_PATH"`
}

package core

type NonSecretConf struct {
	DevMode              bool
	DisableStdoutLog     bool
	EnableFileLog        bool
	LogDir               string
	LogLevel             string
	LogRotationMaxDays   int
	UseDummyBackend      bool
	QueueMaxSize         int
	QueueRefillThreshold int
	MaxWorkers           int
	CheckpointDir        string
	IntegralsPath        string
}

type Info struct {
	Conf *NonSecretConf
}

var CurrentInfo *Info

func SetInfo(c *Conf) {
	conf := &NonSecretConf{
		DevMode:              c.DevMode,
		DisableStdoutLog:     c.DisableStdoutLog,
		EnableFileLog:        c.EnableFileLog,
		LogDir:               c.LogDir,
		LogLevel:             c.LogLevel,
		LogRotationMaxDays:   c.LogRotationMaxDays,
		UseDummyBackend:      c.UseDummyBackend,
		QueueMaxSize:         c.QueueMaxSize,
		QueueRefillThreshold: c.QueueRefillThreshold,
		MaxWorkers:           c.MaxWorkers,
		CheckpointDir:        c.CheckpointDir,
		IntegralsPath:        c.IntegralsPath,
	}

	CurrentInfo = &Info{
		Conf: conf,
	}
}

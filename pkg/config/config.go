package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB               string // connection string for the database
	NatsURL          string // URL of the NATS server used for push notifications
	WaitForServices  string // duration to wait for other services to be ready
	LogLevel         string // sets the log level (zap log level values)
	LogFormat        string // text vs json
	LogConfig        string // path to log config file
	ProfilingPort    int    // port for profiling
	TickInterval     string // duration of one simulation tick
	SnapshotInterval string // interval between automatic race snapshots
	SnapshotTTL      string // expiry for stored snapshots
	SnapshotMaxCount int    // max number of snapshots kept per race
	MaxParticipants  int    // max number of participants per race
	DefaultTotalLaps int    // total laps used when a race is created without a value
)

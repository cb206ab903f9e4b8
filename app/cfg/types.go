package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	Port        string
	SeedFile    string
	WorkerCount int

	// Refresh configuration (seconds unless noted)
	FeedRefreshInterval int
	MetaRefreshInterval int
	GraceWindow         int
	PostStaleWindow     int
	FailureThreshold    int

	// Application metadata
	UserAgent string
	Timezone  string
	Verbose   bool
	Debug     bool
	Force     bool
	Version   string
}

package output

// SourceInfo is one row of `leaporm sources -o json`.
type SourceInfo struct {
	Name     string `json:"name"`
	Dialect  string `json:"dialect"`
	Target   string `json:"target"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // always masked
	PoolMin  int    `json:"pool_min"`
	PoolMax  int    `json:"pool_max"`
}

// SourcesOutput is the JSON document written by `leaporm sources`.
type SourcesOutput struct {
	ConfigFile string       `json:"config_file,omitempty"`
	Sources    []SourceInfo `json:"sources"`
}

// PingResult is the outcome of pinging one data source.
type PingResult struct {
	Name      string  `json:"name"`
	Dialect   string  `json:"dialect"`
	OK        bool    `json:"ok"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
	Open      int     `json:"open"`
	Idle      int     `json:"idle"`
	Leased    int     `json:"leased"`
	Max       int     `json:"max"`
}

// PingOutput is the JSON document written by `leaporm ping`.
type PingOutput struct {
	Results []PingResult `json:"results"`
	Failed  int          `json:"failed"`
}

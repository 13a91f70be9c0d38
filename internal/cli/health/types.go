// Package health provides shared types for decoding health probe
// responses in CLI commands.
package health

// Response represents the API health probe envelope.
type Response struct {
	OK   bool `json:"ok"`
	Data struct {
		Service   string `json:"service"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

package config

// Report defaults.
const (
	DefaultReportPattern  = "**/target/site/jacoco/jacoco.xml"
	DefaultReportFormat   = "jacoco"
	DefaultReportOutput   = "covergate-results"
	DefaultSourceEncoding = "UTF-8"
	DefaultReportWorkers  = 0
)

// Conversion defaults.
const (
	DefaultXSLTProcessor = "xsltproc"
)

// History defaults.
const (
	DefaultHistoryPath = ".covergate/history.db"
	DefaultHistoryKeep = 100
)

// Trend defaults.
const (
	DefaultTrendMaxBuilds = 50
)

// Source defaults.
const (
	DefaultSourceCacheSize = "32MiB"
	maxCacheBytes          = 1 << 40
)

// Server defaults.
const (
	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8080
	maxPort           = 65535
)

package constant

// User agents presented to the catalog backend and CDN.
const (
	// MobileUserAgent mimics the mobile web client, which the download endpoint expects alongside session cookies.
	MobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

	// DesktopUserAgent is used for cookie-less fallback fetches and CDN streaming.
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Streaming defaults.
const (
	// MediaType is forced on every proxied response so players never misclassify the stream.
	MediaType = "video/mp4"

	// ChunkSize is the default relay chunk: 1 MiB.
	ChunkSize = 1 << 20
)

// Catalog endpoint paths, relative to the backend host.
const (
	DetailPath          = "/wefeed-h5-bff/web/subject/detail"
	DownloadPath        = "/wefeed-h5-bff/web/subject/download"
	SearchPath          = "/wefeed-h5-bff/web/subject/search"
	RecommendationsPath = "/wefeed-h5-bff/web/subject/detail-rec"
	TrendingPath        = "/wefeed-h5api-bff/ranking-list/content"
)

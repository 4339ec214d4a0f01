package types

// Dimension is a closed set of grouping columns for top-N breakdowns.
// Queries dispatch on it instead of interpolating a column name.
type Dimension int

const (
	ByCountry Dimension = iota
	ByBrowser
	ByOS
)

func (d Dimension) String() string {
	switch d {
	case ByCountry:
		return "country"
	case ByBrowser:
		return "browser"
	case ByOS:
		return "os"
	}
	return "unknown"
}

// DailyCount is one day of the zero-filled daily histogram, Date as YYYY-MM-DD.
type DailyCount struct {
	Date  string `json:"date"`
	Count uint64 `json:"count"`
}

// TopEntry is one group of a top-N breakdown; Count is distinct IPs in the group.
type TopEntry struct {
	Label string `json:"label"`
	Count uint64 `json:"count"`
}

type LinkStats struct {
	TotalClicks  uint64       `json:"total_clicks"`
	UniqueClicks uint64       `json:"unique_clicks"`
	Daily        []DailyCount `json:"daily"`
	Hourly       [24]uint64   `json:"hourly"`
	TopCountries []TopEntry   `json:"top_countries"`
	TopBrowsers  []TopEntry   `json:"top_browsers"`
	TopOS        []TopEntry   `json:"top_os"`
}

type UserDashboard struct {
	TotalLinks   int64      `json:"total_links"`
	ActiveLinks  int64      `json:"active_links"`
	TotalClicks  uint64     `json:"total_clicks"`
	UniqueClicks uint64     `json:"unique_clicks"`
	TopLinks     []TopLink  `json:"top_links"`
	TopCountries []TopEntry `json:"top_countries"`
	TopBrowsers  []TopEntry `json:"top_browsers"`
	TopOS        []TopEntry `json:"top_os"`
	Hourly       [24]uint64 `json:"hourly"`
}

type TopLink struct {
	LinkID int64  `json:"link_id"`
	Clicks uint64 `json:"clicks"`
}

type AdminDashboard struct {
	TotalLinks       int64        `json:"total_links"`
	ActiveLinks      int64        `json:"active_links"`
	TotalUsers       int64        `json:"total_users"`
	TotalClicks      uint64       `json:"total_clicks"`
	UniqueClicks     uint64       `json:"unique_clicks"`
	AvgClicksPerLink int64        `json:"avg_clicks_per_link"`
	Daily            []DailyCount `json:"daily"`
	Hourly           [24]uint64   `json:"hourly"`
	TopCountries     []TopEntry   `json:"top_countries"`
	TopBrowsers      []TopEntry   `json:"top_browsers"`
	TopOS            []TopEntry   `json:"top_os"`
}

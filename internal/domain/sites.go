package domain

// Site is an entry of the curated supported-sites list.
type Site struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Status string `json:"status"`
}

// SupportedSitesNote accompanies the curated list.
const SupportedSitesNote = "yt-dlp supports over 1000 sites. This is a curated list of popular ones."

const (
	siteSupported = "Supported"
	siteLimited   = "Limited (due to bot detection)"
)

var supportedSites = []Site{
	{Name: "YouTube", Domain: "youtube.com", Status: siteLimited},
	{Name: "Vimeo", Domain: "vimeo.com", Status: siteSupported},
	{Name: "Dailymotion", Domain: "dailymotion.com", Status: siteSupported},
	{Name: "Twitch", Domain: "twitch.tv", Status: siteSupported},
	{Name: "TikTok", Domain: "tiktok.com", Status: siteSupported},
	{Name: "Instagram", Domain: "instagram.com", Status: siteSupported},
	{Name: "Twitter/X", Domain: "twitter.com", Status: siteSupported},
	{Name: "Facebook", Domain: "facebook.com", Status: siteSupported},
	{Name: "Reddit", Domain: "reddit.com", Status: siteSupported},
	{Name: "Streamable", Domain: "streamable.com", Status: siteSupported},
}

// SupportedSites returns a copy of the curated list. It is informational
// and not derived from the engine's extractor list.
func SupportedSites() []Site {
	out := make([]Site, len(supportedSites))
	copy(out, supportedSites)
	return out
}

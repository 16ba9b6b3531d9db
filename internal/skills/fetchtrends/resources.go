package fetchtrends

import (
	"strings"

	"github.com/vietddude/skillgate/internal/core/domain"
)

var primaryResources = map[domain.Platform]string{
	domain.PlatformTwitter: "twitter://mentions/recent",
	domain.PlatformNews:    "news://global/trends",
	domain.PlatformMarket:  "market://crypto/{asset}/trending",
	domain.PlatformReddit:  "reddit://all/hot",
	domain.PlatformTikTok:  "tiktok://trending/videos",
}

var fallbackResources = map[domain.Platform]string{
	domain.PlatformTwitter: "twitter/feed/general",
	domain.PlatformNews:    "news/global/trends",
	domain.PlatformMarket:  "market/crypto/general",
	domain.PlatformReddit:  "reddit/all/trending",
	domain.PlatformTikTok:  "tiktok/trending/general",
}

// PrimaryResource returns the MCP resource URI of platform. The market
// resource is templated on asset.
func PrimaryResource(platform domain.Platform, asset string) string {
	uri := primaryResources[platform]
	if asset == "" {
		asset = DefaultMarketAsset
	}
	return strings.ReplaceAll(uri, "{asset}", asset)
}

// FallbackResource returns the resource used once the MCP resource fails.
func FallbackResource(platform domain.Platform) string {
	return fallbackResources[platform]
}

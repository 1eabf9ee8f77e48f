package igdb

import "fmt"

// Image sizes served by the IGDB CDN
const (
	SizeThumb          = "thumb"
	SizeCoverSmall     = "cover_small"
	SizeCoverBig       = "cover_big"
	SizeScreenshotMed  = "screenshot_med"
	SizeScreenshotBig  = "screenshot_big"
	SizeScreenshotHuge = "screenshot_huge"
	Size720p           = "720p"
	Size1080p          = "1080p"
)

const imageURLTemplate = "https://images.igdb.com/igdb/image/upload/t_%s/%s.jpg"

// ImageURL returns the CDN URL for imageID at size. An empty size means cover_big.
func ImageURL(imageID, size string) string {
	if imageID == "" {
		return ""
	}
	if size == "" {
		size = SizeCoverBig
	}
	return fmt.Sprintf(imageURLTemplate, size, imageID)
}

package feed

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
)

// PostIdentifier computes the stable identifier for a feed item from its
// GUID, link and first declared enclosure URL. It is the upsert key for
// post persistence, so the formula must stay byte-for-byte stable.
func PostIdentifier(guid, link string, enclosures []Enclosure) string {
	id := guid + ":" + link

	// The first enclosure URL seems unlikely to change between fetches,
	// so it participates in the identity when present.
	if len(enclosures) > 0 {
		id += ":" + enclosures[0].URL
	}

	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}

// FeedIdentifier computes the composite identifier for a feed from its
// URL and the identifiers of its first five posts. It recognizes the same
// logical feed reachable through different URLs and is the primary upsert
// key for the feed record.
func FeedIdentifier(feedURL string, posts []Post) string {
	var id string
	if parsed, err := url.Parse(feedURL); err == nil {
		id = parsed.Hostname() + ":" + parsed.Path
	} else {
		id = feedURL
	}

	for i, post := range posts {
		if i >= 5 {
			break
		}
		id += ":" + post.Identifier
	}

	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}

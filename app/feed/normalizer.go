package feed

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Run converts a parsed feed item into a canonical Post. The identifier
// is computed from the raw GUID, link and first declared enclosure before
// any extension media is merged in, so it stays stable across runs.
func (n *Normalizer) Run(item *gofeed.Item, postType string) Post {
	rawEnclosures := declaredEnclosures(item)

	post := Post{
		// Identity is computed from the raw declarations; the processed
		// enclosure list below may drop or reorder entries.
		Identifier:  PostIdentifier(item.GUID, item.Link, rawEnclosures),
		GUID:        item.GUID,
		Title:       item.Title,
		URL:         item.Link,
		PostType:    postType,
		Summary:     StripHTML(item.Description),
		Description: StripHTML(firstNonEmpty(item.Description, item.Content)),
		Content:     SanitizeHTML(firstNonEmpty(item.Content, item.Description)),
		Enclosures:  classifyEnclosures(rawEnclosures),
		PublishedAt: item.PublishedParsed,
	}

	if item.Image != nil {
		post.Images.Featured = item.Image.URL
	}

	if item.Categories != nil {
		post.Interests = append(post.Interests, item.Categories...)
	}

	if item.Author != nil {
		post.Author = strings.TrimSpace(item.Author.Name)
	}

	n.mergeMediaExtensions(item, &post)
	n.mergeVideoExtension(item, &post)
	n.mergeAuthorExtension(item, &post)

	post.Enclosures = dedupeEnclosures(post.Enclosures)

	if post.Images.Featured == "" {
		for _, enc := range post.Enclosures {
			if enc.Medium == MediumImage {
				post.Images.Featured = enc.URL
				break
			}
		}
	}

	return post
}

// mergeMediaExtensions folds media:content (top-level and inside
// media:group) into the enclosure list, capturing nested title,
// description and credit sub-fields. Credits become interests.
func (n *Normalizer) mergeMediaExtensions(item *gofeed.Item, post *Post) {
	media, ok := item.Extensions["media"]
	if !ok {
		return
	}

	for _, content := range media["content"] {
		post.Enclosures = append(post.Enclosures, mediaEnclosure(content))
		for _, credit := range content.Children["credit"] {
			if credit.Value != "" {
				post.Interests = append(post.Interests, credit.Value)
			}
		}
	}

	for _, group := range media["group"] {
		for _, content := range group.Children["content"] {
			post.Enclosures = append(post.Enclosures, mediaEnclosure(content))
		}
	}
}

// mergeVideoExtension synthesizes a watch-page enclosure for feeds that
// declare a platform video id (yt:videoId), and falls back to the media
// group description when the item itself carried none.
func (n *Normalizer) mergeVideoExtension(item *gofeed.Item, post *Post) {
	yt, ok := item.Extensions["yt"]
	if !ok {
		return
	}

	ids := yt["videoId"]
	if len(ids) == 0 || ids[0].Value == "" {
		return
	}

	post.Enclosures = append(post.Enclosures, Enclosure{
		Type: "youtube",
		URL:  fmt.Sprintf("https://www.youtube.com/watch?v=%s", ids[0].Value),
	})

	if post.Description == "" {
		if media, ok := item.Extensions["media"]; ok {
			for _, group := range media["group"] {
				for _, desc := range group.Children["description"] {
					if desc.Value != "" {
						post.Description = StripHTML(desc.Value)
						return
					}
				}
			}
		}
	}
}

func (n *Normalizer) mergeAuthorExtension(item *gofeed.Item, post *Post) {
	if post.Author != "" {
		return
	}

	if dc, ok := item.Extensions["dc"]; ok {
		for _, creator := range dc["creator"] {
			if creator.Value != "" {
				post.Author = strings.TrimSpace(creator.Value)
				return
			}
		}
	}

	if atom, ok := item.Extensions["atom"]; ok {
		for _, author := range atom["author"] {
			for _, name := range author.Children["name"] {
				if name.Value != "" {
					post.Author = strings.TrimSpace(name.Value)
					return
				}
			}
		}
	}
}

// declaredEnclosures maps the item's own enclosure declarations without
// classification. The unfiltered list feeds the identifier.
func declaredEnclosures(item *gofeed.Item) []Enclosure {
	enclosures := make([]Enclosure, 0, len(item.Enclosures))
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		enclosures = append(enclosures, Enclosure{
			URL:    enc.URL,
			Type:   enc.Type,
			Length: enc.Length,
		})
	}
	return enclosures
}

// classifyEnclosures stamps a medium on every declared enclosure. Items
// whose first enclosure lacks a type are treated as having no usable
// enclosures, matching feeds that declare empty tags.
func classifyEnclosures(enclosures []Enclosure) []Enclosure {
	if len(enclosures) == 0 || enclosures[0].Type == "" {
		return nil
	}

	classified := make([]Enclosure, len(enclosures))
	for i, enc := range enclosures {
		enc.Medium = ClassifyMedium(enc.Type)
		classified[i] = enc
	}
	return classified
}

// ClassifyMedium derives the medium of an enclosure from a MIME type by
// substring match. Unknown types yield an empty medium.
func ClassifyMedium(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "audio"):
		return MediumAudio
	case strings.Contains(mimeType, "video"):
		return MediumVideo
	case strings.Contains(mimeType, "image"):
		return MediumImage
	default:
		return ""
	}
}

func mediaEnclosure(content ext.Extension) Enclosure {
	attrs := content.Attrs

	medium := attrs["medium"]
	if medium == "" {
		medium = ClassifyMedium(attrs["type"])
	}

	enc := Enclosure{
		URL:    attrs["url"],
		Type:   attrs["type"],
		Length: firstNonEmpty(attrs["fileSize"], attrs["length"]),
		Width:  attrs["width"],
		Height: attrs["height"],
		Medium: medium,
	}

	for _, title := range content.Children["title"] {
		enc.Title = title.Value
		break
	}
	for _, desc := range content.Children["description"] {
		enc.Description = desc.Value
		break
	}

	return enc
}

// dedupeEnclosures keeps the first occurrence per URL and orders the
// result by declared length descending, so the primary media asset is
// first.
func dedupeEnclosures(enclosures []Enclosure) []Enclosure {
	if len(enclosures) == 0 {
		return enclosures
	}

	seen := make(map[string]bool, len(enclosures))
	filtered := make([]Enclosure, 0, len(enclosures))
	for _, enc := range enclosures {
		if seen[enc.URL] {
			continue
		}
		seen[enc.URL] = true
		filtered = append(filtered, enc)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return declaredLength(filtered[i]) > declaredLength(filtered[j])
	})

	return filtered
}

func declaredLength(enc Enclosure) int64 {
	length, err := strconv.ParseInt(enc.Length, 10, 64)
	if err != nil {
		return 0
	}
	return length
}

// SanitizeHTML strips active and embedded elements from an HTML fragment
// while keeping the remaining markup intact. Used for the post content
// body taken from the feed itself.
func SanitizeHTML(s string) string {
	if s == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}

	doc.Find("script, style, iframe, noscript, object, embed").Remove()

	html, err := doc.Find("body").Html()
	if err != nil {
		return s
	}
	return strings.TrimSpace(html)
}

// StripHTML removes markup and decodes entities, collapsing whitespace to
// single spaces. Used for the plain-text description field.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

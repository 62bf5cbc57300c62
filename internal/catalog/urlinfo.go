package catalog

import (
	"net/url"
	"regexp"
)

var productIDPattern = regexp.MustCompile(`/product/(\d+)`)

// URLInfo is the metadata encoded in a product URL.
type URLInfo struct {
	ProductID *string
	Variant   *string
}

// ParseURLInfo extracts the numeric product id from a /product/<id> path and
// the variant query parameter. Unparseable URLs yield an empty URLInfo.
func ParseURLInfo(rawURL string) URLInfo {
	var info URLInfo
	if m := productIDPattern.FindStringSubmatch(rawURL); m != nil {
		id := m[1]
		info.ProductID = &id
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return info
	}
	// Blank values count as absent.
	for _, variant := range parsed.Query()["variant"] {
		if variant != "" {
			info.Variant = &variant
			break
		}
	}
	return info
}

// MergeURLInfo returns a copy of doc with the URL metadata fields set from
// its URL. Fields extracted from the URL replace any existing values, absent
// ones are cleared.
func MergeURLInfo(doc Document) Document {
	info := ParseURLInfo(doc.URL)
	doc.ProductID = info.ProductID
	doc.Variant = info.Variant
	return doc
}

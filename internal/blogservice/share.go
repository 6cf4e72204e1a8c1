package blogservice

import (
	"net/url"
	"strconv"
	"strings"
)

type ShareLinks struct {
	Link     string `json:"link"`
	WhatsApp string `json:"whatsapp"`
	Facebook string `json:"facebook"`
	Twitter  string `json:"twitter"`
}

// NewShareLinks returns the canonical link to a post on the site and the social intent URLs for it.
func NewShareLinks(siteURL string, p *Post) ShareLinks {
	link := strings.TrimRight(siteURL, "/") + "/blog#" + strconv.Itoa(p.ID)

	return ShareLinks{
		Link:     link,
		WhatsApp: "https://wa.me/?text=" + url.QueryEscape(p.Title+" "+link),
		Facebook: "https://www.facebook.com/sharer/sharer.php?u=" + url.QueryEscape(link),
		Twitter:  "https://twitter.com/intent/tweet?url=" + url.QueryEscape(link) + "&text=" + url.QueryEscape(p.Title),
	}
}

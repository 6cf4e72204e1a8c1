package blogservice

import (
	"net/url"
	"strings"

	"github.com/sushihentaime/emerald/internal/common"
)

const AnonymousName = "Anonymous"

func validateTitle(v *common.Validator, title string) {
	v.Check(title != "", "title", "must be provided")
	v.Check(v.CheckStringLength(title, 1, 200), "title", "must be between 1 and 200 characters long")
}

func validateContent(v *common.Validator, content string) {
	v.Check(strings.TrimSpace(content) != "", "content", "must be provided")
}

// validateMediaURL accepts an empty value, a site-relative path or an absolute http(s) URL.
func validateMediaURL(v *common.Validator, raw, key string) {
	if raw == "" {
		return
	}

	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return
	}

	u, err := url.Parse(raw)
	v.Check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "", key, "must be a valid URL")
}

func validateCommentText(v *common.Validator, text string) {
	v.Check(text != "", "text", "must be provided")
	v.Check(v.CheckStringLength(text, 1, 1000), "text", "must not be more than 1000 characters long")
}

func validateInt(v *common.Validator, num int, name string) {
	v.Check(num > 0, name, "must be greater than zero")
}

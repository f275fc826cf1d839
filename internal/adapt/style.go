package adapt

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// setStyle sets one inline CSS property, replacing an existing declaration of
// the same property in place and keeping every other declaration.
func setStyle(s *goquery.Selection, prop, value string) {
	existing, _ := s.Attr("style")
	s.SetAttr("style", mergeStyle(existing, prop, value))
}

func mergeStyle(style, prop, value string) string {
	decl := prop + ": " + value
	var out []string
	replaced := false
	for _, d := range strings.Split(style, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name, _, _ := strings.Cut(d, ":")
		if strings.EqualFold(strings.TrimSpace(name), prop) {
			if !replaced {
				out = append(out, decl)
				replaced = true
			}
			continue
		}
		out = append(out, d)
	}
	if !replaced {
		out = append(out, decl)
	}
	return strings.Join(out, "; ")
}

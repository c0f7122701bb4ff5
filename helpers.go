package pubfront

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"

	"github.com/eringen/pubfront/richtext"
)

// Date layouts accepted by FormatDate.
const (
	ListingDateLayout = "d MMM yy"
	PostDateLayout    = "dd MMM yyyy"
	EditedDateLayout  = "dd MMM yyyy, 'às' HH:mm"
)

// WordsPerMinute is the reading speed ReadingTime assumes.
const WordsPerMinute = 200

var (
	dateLocales = []language.Tag{language.English, language.BrazilianPortuguese}
	dateMatcher = language.NewMatcher(dateLocales)

	shortMonths = [][12]string{
		{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	}
	longMonths = [][12]string{
		{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
		{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"},
	}
)

// FormatDate formats t with a CLDR-style layout in the given locale.
// Supported fields are d, dd, MMM, MMMM, yy, yyyy, HH and mm; text inside
// single quotes is copied as is. Locales without month names fall back to
// English. The zero time formats as "".
func FormatDate(t time.Time, layout, locale string) string {
	if t.IsZero() {
		return ""
	}
	idx := 0
	if tag, err := language.Parse(locale); err == nil {
		if _, i, conf := dateMatcher.Match(tag); conf != language.No {
			idx = i
		}
	}

	var b strings.Builder
	rs := []rune(layout)
	for i := 0; i < len(rs); {
		r := rs[i]
		if r == '\'' {
			j := i + 1
			for j < len(rs) && rs[j] != '\'' {
				j++
			}
			b.WriteString(string(rs[i+1 : j]))
			i = j + 1
			continue
		}
		if !unicode.IsLetter(r) {
			b.WriteRune(r)
			i++
			continue
		}
		j := i
		for j < len(rs) && rs[j] == r {
			j++
		}
		field := string(rs[i:j])
		switch field {
		case "d":
			b.WriteString(strconv.Itoa(t.Day()))
		case "dd":
			b.WriteString(twoDigits(t.Day()))
		case "MMM":
			b.WriteString(shortMonths[idx][t.Month()-1])
		case "MMMM":
			b.WriteString(longMonths[idx][t.Month()-1])
		case "yy":
			b.WriteString(twoDigits(t.Year() % 100))
		case "yyyy":
			b.WriteString(strconv.Itoa(t.Year()))
		case "HH":
			b.WriteString(twoDigits(t.Hour()))
		case "mm":
			b.WriteString(twoDigits(t.Minute()))
		default:
			b.WriteString(field)
		}
		i = j
	}
	return b.String()
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// ReadingTime estimates the minutes needed to read p: all words of its
// headings and bodies at WordsPerMinute, rounded up.
func ReadingTime(p Post) int {
	words := 0
	for _, section := range p.Content {
		words += len(strings.Fields(section.Heading))
		words += len(strings.Fields(richtext.PlainText(section.Body)))
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}

// WasEdited reports whether p was republished after its first publication.
func WasEdited(p Post) bool {
	return !p.LastPublicationDate.IsZero() && p.LastPublicationDate.After(p.FirstPublicationDate)
}

// Slugify converts a string to a URL and filesystem safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// PathEscape escapes a string for use in a URL path.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(post Post, cfg SiteConfig) string {
	postURL := BuildURL(cfg.URL, "post", post.UID)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Subtitle,
		"datePublished": post.FirstPublicationDate.Format(time.RFC3339),
		"url":           postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if WasEdited(post) {
		data["dateModified"] = post.LastPublicationDate.Format(time.RFC3339)
	}
	if post.BannerURL != "" {
		data["image"] = BuildURL(cfg.URL, "banner", post.UID)
	}
	author := post.Author
	if author == "" {
		author = cfg.Author
	}
	if author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  author,
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

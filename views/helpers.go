package views

import (
	"bytes"
	"html/template"
	"time"

	"golang.org/x/text/language"

	"github.com/eringen/pubfront"
	"github.com/eringen/pubfront/richtext"
)

// Labels are the fixed strings of the default templates.
type Labels struct {
	LoadMore    string
	LoadError   string
	Expired     string
	Edited      string
	NotFound    string
	ServerError string
	Back        string
}

var (
	labelsPT = Labels{
		LoadMore:    "Carregar mais posts",
		LoadError:   "Não foi possível carregar mais posts. Tente novamente.",
		Expired:     "A lista expirou. Recarregue a página para ver mais posts.",
		Edited:      "editado em",
		NotFound:    "Página não encontrada.",
		ServerError: "Algo deu errado. Tente novamente em instantes.",
		Back:        "Voltar para o início",
	}
	labelsEN = Labels{
		LoadMore:    "Load more posts",
		LoadError:   "Could not load more posts. Please try again.",
		Expired:     "This list has expired. Reload the page to see more posts.",
		Edited:      "edited on",
		NotFound:    "Page not found.",
		ServerError: "Something went wrong. Please try again shortly.",
		Back:        "Back to home",
	}
)

// LabelsFor returns the template strings for a BCP 47 locale. Portuguese
// locales get Portuguese strings, everything else English.
func LabelsFor(locale string) Labels {
	tag, err := language.Parse(locale)
	if err != nil {
		return labelsEN
	}
	if base, _ := tag.Base(); base.String() == "pt" {
		return labelsPT
	}
	return labelsEN
}

func funcMap(locale string) template.FuncMap {
	return template.FuncMap{
		"listingDate": func(t time.Time) string {
			return pubfront.FormatDate(t, pubfront.ListingDateLayout, locale)
		},
		"postDate": func(t time.Time) string {
			return pubfront.FormatDate(t, pubfront.PostDateLayout, locale)
		},
		"editedDate": func(t time.Time) string {
			return pubfront.FormatDate(t, pubfront.EditedDateLayout, locale)
		},
		"isoDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(time.RFC3339)
		},
		"edited": pubfront.WasEdited,
		"richText": func(blocks richtext.Blocks) template.HTML {
			var buf bytes.Buffer
			richtext.Render(&buf, blocks)
			return template.HTML(buf.String())
		},
	}
}

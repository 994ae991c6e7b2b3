package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// LangCookie remembers a language picked with the ?lang= query parameter.
const LangCookie = "console_lang"

// Middleware picks the request language from ?lang=, the language cookie or
// Accept-Language, in that order, falling back to the default language.
func Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var prefs []string
			if q := r.URL.Query().Get("lang"); q != "" && Supported(q) {
				http.SetCookie(w, &http.Cookie{
					Name:     LangCookie,
					Value:    q,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
				prefs = append(prefs, q)
			}
			if c, err := r.Cookie(LangCookie); err == nil && Supported(c.Value) {
				prefs = append(prefs, c.Value)
			}
			if accept := r.Header.Get("Accept-Language"); accept != "" {
				prefs = append(prefs, accept)
			}

			lang := pick(prefs)
			ctx := WithLocalizer(r.Context(), NewLocalizer(prefs...), lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// pick matches preferences against the loaded locales.
func pick(prefs []string) string {
	if bundle == nil {
		return defaultLang
	}
	matcher := language.NewMatcher(bundle.LanguageTags())
	for _, p := range prefs {
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil || len(tags) == 0 {
			continue
		}
		if _, idx, conf := matcher.Match(tags...); conf != language.No {
			base, _ := bundle.LanguageTags()[idx].Base()
			return base.String()
		}
	}
	return defaultLang
}

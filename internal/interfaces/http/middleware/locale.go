package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/shared"
	"golang.org/x/text/language"
)

// LocaleKey holds the negotiated shared.Locale on the gin context
const LocaleKey = "locale"

// The first tag is the fallback
var localeMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Arabic,
})

// Locale negotiates the response language from a ?lang= override or the
// Accept-Language header and echoes it in Content-Language.
func Locale() gin.HandlerFunc {
	return func(c *gin.Context) {
		locale := negotiateLocale(c.Query("lang"), c.GetHeader("Accept-Language"))
		c.Set(LocaleKey, locale)
		c.Header("Content-Language", string(locale))
		c.Next()
	}
}

// GetLocale returns the negotiated locale, or the default when Locale did
// not run
func GetLocale(c *gin.Context) shared.Locale {
	if v, ok := c.Get(LocaleKey); ok {
		if l, ok := v.(shared.Locale); ok {
			return l
		}
	}
	return shared.DefaultLocale
}

func negotiateLocale(override, acceptLanguage string) shared.Locale {
	if override != "" {
		if l := shared.Locale(override); l.IsSupported() {
			return l
		}
	}
	if acceptLanguage == "" {
		return shared.DefaultLocale
	}
	tag, _ := language.MatchStrings(localeMatcher, acceptLanguage)
	base, _ := tag.Base()
	return shared.ParseLocale(base.String())
}

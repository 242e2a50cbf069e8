package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/stepio/internal/models"
)

const (
	locationKey = "location"
	languageKey = "language"
)

// Locale reads the X-Timezone and Accept-Language headers into context.
// A missing or unknown zone falls back to def.
func Locale(def *time.Location) fiber.Handler {
	return func(c *fiber.Ctx) error {
		loc := def
		if name := c.Get("X-Timezone"); name != "" {
			if l, err := time.LoadLocation(name); err == nil {
				loc = l
			}
		}
		c.Locals(locationKey, loc)
		c.Locals(languageKey, models.ParseLanguage(c.Get(fiber.HeaderAcceptLanguage)))
		return c.Next()
	}
}

// LocationFrom returns the zone stored by Locale, or UTC.
func LocationFrom(c *fiber.Ctx) *time.Location {
	if loc, ok := c.Locals(locationKey).(*time.Location); ok && loc != nil {
		return loc
	}
	return time.UTC
}

// LanguageFrom returns the language stored by Locale, or Portuguese.
func LanguageFrom(c *fiber.Ctx) models.Language {
	if lang, ok := c.Locals(languageKey).(models.Language); ok {
		return lang
	}
	return models.LanguagePT
}

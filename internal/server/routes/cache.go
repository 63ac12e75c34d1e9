package routes

import (
	"sort"

	"github.com/gofiber/fiber/v3"

	"github.com/corsproxy/corsproxy/internal/cache"
	"github.com/corsproxy/corsproxy/internal/version"
)

// RegisterDiagnosticsRoutes 暴露 /-/cache 与 /-/version 诊断接口，便于观察缓存目录。
func RegisterDiagnosticsRoutes(app *fiber.App, store cache.Store) {
	if app == nil || store == nil {
		return
	}

	app.Get("/-/cache", func(c fiber.Ctx) error {
		entries, err := store.List(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "cache_list_failed",
				"cause": err.Error(),
			})
		}
		freshness := store.Freshness()
		return c.JSON(fiber.Map{
			"ttl_seconds": int64(freshness.TTL().Seconds()),
			"entries":     encodeEntries(entries, freshness),
		})
	})

	app.Get("/-/version", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"version": version.Full()})
	})
}

type entryPayload struct {
	Name               string  `json:"name"`
	SizeBytes          int64   `json:"size_bytes"`
	AgeSeconds         int64   `json:"age_seconds"`
	RefetchProbability float64 `json:"refetch_probability"`
	Expired            bool    `json:"expired"`
}

func encodeEntries(entries []cache.Entry, freshness cache.Freshness) []entryPayload {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	now := freshness.Now()
	ttl := freshness.TTL()
	result := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		age := entry.Age(now)
		result = append(result, entryPayload{
			Name:               entry.Name,
			SizeBytes:          entry.SizeBytes,
			AgeSeconds:         int64(age.Seconds()),
			RefetchProbability: cache.RefetchProbability(age, ttl),
			Expired:            age >= ttl,
		})
	}
	return result
}

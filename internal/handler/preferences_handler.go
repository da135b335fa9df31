package handler

import (
	"errors"
	"fmt"

	"github.com/campushub/notifyhub/internal/domain"
	"github.com/campushub/notifyhub/internal/ratelimit"
	"github.com/campushub/notifyhub/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PreferencesHandler struct {
	preferences store.PreferenceStore
}

func NewPreferencesHandler(preferences store.PreferenceStore) (*PreferencesHandler, error) {
	if preferences == nil {
		return nil, fmt.Errorf("preference store is required")
	}
	return &PreferencesHandler{preferences: preferences}, nil
}

func RegisterPreferenceRoutes(router fiber.Router, preferences store.PreferenceStore, limiter ratelimit.Limiter, logger *zap.Logger) error {
	h, err := NewPreferencesHandler(preferences)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1", AuthMiddleware(), RateLimitMiddleware(limiter, logger))
	v1.Get("/reminder-preferences", h.GetPreferences)
	v1.Put("/reminder-preferences", h.PutPreferences)

	return nil
}

type preferencesRequest struct {
	Enabled     bool     `json:"enabled"`
	Categories  []string `json:"categories,omitempty"`
	HourOffsets []int    `json:"hourOffsets"`
}

type preferencesResponse struct {
	UserID      string   `json:"userId"`
	Enabled     bool     `json:"enabled"`
	Categories  []string `json:"categories,omitempty"`
	HourOffsets []int    `json:"hourOffsets"`
}

// GetPreferences returns the caller's reminder preferences, falling back
// to the enabled defaults for users who never stored any.
func (h *PreferencesHandler) GetPreferences(c *fiber.Ctx) error {
	p := principalFrom(c)

	prefs, err := h.preferences.Get(c.Context(), p.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			prefs = &domain.ReminderPreferences{
				UserID:      p.UserID,
				Enabled:     true,
				HourOffsets: domain.DefaultHourOffsets,
			}
		} else {
			return toHTTPError(err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(toPreferencesResponse(prefs))
}

func (h *PreferencesHandler) PutPreferences(c *fiber.Ctx) error {
	var req preferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	categories := make([]domain.Type, 0, len(req.Categories))
	for _, raw := range req.Categories {
		t, err := domain.ParseTypeFromString(raw)
		if err != nil {
			return toHTTPError(err)
		}
		categories = append(categories, t)
	}

	p := principalFrom(c)
	prefs := &domain.ReminderPreferences{
		UserID:      p.UserID,
		Enabled:     req.Enabled,
		Categories:  categories,
		HourOffsets: req.HourOffsets,
	}
	if err := prefs.Validate(); err != nil {
		return toHTTPError(err)
	}

	if err := h.preferences.Save(c.Context(), prefs); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toPreferencesResponse(prefs))
}

func toPreferencesResponse(prefs *domain.ReminderPreferences) preferencesResponse {
	categories := make([]string, 0, len(prefs.Categories))
	for _, t := range prefs.Categories {
		categories = append(categories, t.String())
	}
	return preferencesResponse{
		UserID:      prefs.UserID,
		Enabled:     prefs.Enabled,
		Categories:  categories,
		HourOffsets: prefs.HourOffsets,
	}
}

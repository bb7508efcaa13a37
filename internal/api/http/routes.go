package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/i474232898/weather-alert-service/internal/domain"
	"github.com/i474232898/weather-alert-service/internal/registry"
	"github.com/i474232898/weather-alert-service/internal/scheduler"
	"github.com/i474232898/weather-alert-service/internal/store"
	"github.com/i474232898/weather-alert-service/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reg *registry.Registry, weatherSvc *weather.Service, alerts store.AlertStore, sched *scheduler.Scheduler) {
	v1 := app.Group("/api/v1")

	v1.Post("/users", func(c *fiber.Ctx) error {
		var req createUserRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		user, err := reg.CreateUser(c.Context(), req.Email)
		if err != nil {
			return mapStoreError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	})

	v1.Post("/locations", func(c *fiber.Ctx) error {
		var req createLocationRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		loc, err := reg.CreateLocation(c.Context(), req.Name, req.Latitude, req.Longitude)
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return mapStoreError(err)
			}
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(loc)
	})

	v1.Get("/locations", func(c *fiber.Ctx) error {
		locs, err := reg.ListLocations(c.Context())
		if err != nil {
			return err
		}
		if locs == nil {
			locs = []domain.Location{}
		}
		return c.JSON(locs)
	})

	v1.Get("/locations/:locationId/weather/current", func(c *fiber.Ctx) error {
		locationID, err := parseID(c, "locationId")
		if err != nil {
			return err
		}
		current, err := weatherSvc.GetCurrent(c.Context(), locationID)
		if err != nil {
			return mapStoreError(err)
		}
		return c.JSON(current)
	})

	v1.Get("/locations/:locationId/weather/hourly", func(c *fiber.Ctx) error {
		locationID, err := parseID(c, "locationId")
		if err != nil {
			return err
		}
		hours := c.QueryInt("hours", 24)
		hourly, err := weatherSvc.GetHourly(c.Context(), locationID, hours)
		if err != nil {
			return mapStoreError(err)
		}
		return c.JSON(hourly)
	})

	v1.Post("/subscriptions", func(c *fiber.Ctx) error {
		var req createSubscriptionRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid userId")
		}
		locationID, err := uuid.Parse(req.LocationID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid locationId")
		}

		sub, err := reg.CreateSubscription(c.Context(), userID, locationID, domain.RuleType(req.RuleType), req.Threshold)
		if err != nil {
			return mapStoreError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sub)
	})

	v1.Delete("/subscriptions/:subscriptionId", func(c *fiber.Ctx) error {
		subscriptionID, err := parseID(c, "subscriptionId")
		if err != nil {
			return err
		}
		if err := reg.Unsubscribe(c.Context(), subscriptionID); err != nil {
			return mapStoreError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/users/:userId/alerts", func(c *fiber.Ctx) error {
		userID, err := parseID(c, "userId")
		if err != nil {
			return err
		}
		events, err := alerts.ListAlertsByUser(c.Context(), userID)
		if err != nil {
			return mapStoreError(err)
		}
		if events == nil {
			events = []domain.AlertEvent{}
		}
		return c.JSON(events)
	})

	v1.Post("/ingest/run", func(c *fiber.Ctx) error {
		ran := sched.TriggerIngest(c.Context())
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"ran": ran,
		})
	})
}

type createUserRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type createLocationRequest struct {
	Name      string   `json:"name" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

type createSubscriptionRequest struct {
	UserID     string  `json:"userId" validate:"required"`
	LocationID string  `json:"locationId" validate:"required"`
	RuleType   string  `json:"ruleType" validate:"required,oneof=TEMP_BELOW TEMP_ABOVE PRECIP_ABOVE"`
	Threshold  float64 `json:"threshold"`
}

func bindBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+param)
	}
	return id, nil
}

// mapStoreError translates pipeline errors into the API taxonomy:
// not-found and provider-unavailable are the only domain conditions meant
// to reach clients, each as a distinct status.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicate):
		return fiber.NewError(fiber.StatusConflict, "conflict")
	case errors.Is(err, weather.ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "weather provider unavailable")
	}
	return err
}

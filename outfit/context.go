package outfit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"outfitapi/models"
	"outfitapi/services"
)

var errNoLocation = errors.New("no location configured")

// ContextSource fetches optional request context such as weather or pins.
// The returned function applies the result to a request.
type ContextSource interface {
	Name() string
	Fetch(ctx context.Context, userID uint) (func(*Request), error)
}

// LocationSource returns where the user is.
type LocationSource interface {
	Location(ctx context.Context, userID uint) (string, error)
}

// WeatherSource adds current weather for the user's saved location.
// A request that already carries weather keeps it.
type WeatherSource struct {
	Provider  services.WeatherProvider
	Locations LocationSource
}

func (WeatherSource) Name() string { return "weather" }

func (w WeatherSource) Fetch(ctx context.Context, userID uint) (func(*Request), error) {
	location, err := w.Locations.Location(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(location) == "" {
		return nil, errNoLocation
	}
	weather, err := w.Provider.Current(ctx, location)
	if err != nil {
		return nil, err
	}
	return func(r *Request) {
		if r.Weather == nil {
			r.Weather = weather
		}
	}, nil
}

// PinSource lists pins from the user's connected Pinterest account.
type PinSource interface {
	RecentPins(ctx context.Context, userID uint, limit int) ([]models.PinPreview, error)
}

// PinterestSource adds recent pins and a short text summary of them.
type PinterestSource struct {
	Pins PinSource
}

func (PinterestSource) Name() string { return "pinterest" }

func (p PinterestSource) Fetch(ctx context.Context, userID uint) (func(*Request), error) {
	pins, err := p.Pins.RecentPins(ctx, userID, MaxPinterestPins)
	if err != nil {
		return nil, err
	}
	if len(pins) == 0 {
		return nil, nil
	}
	if len(pins) > MaxPinterestPins {
		pins = pins[:MaxPinterestPins]
	}
	summary := SummarizePins(pins)
	return func(r *Request) {
		if len(r.PinterestPins) == 0 {
			r.PinterestPins = pins
		}
		if r.PinterestContext == nil && summary != "" {
			r.PinterestContext = &summary
		}
	}, nil
}

// SummarizePins joins pin titles and descriptions, cut to MaxPinterestContextLength runes.
func SummarizePins(pins []models.PinPreview) string {
	var b strings.Builder
	for _, pin := range pins {
		line := strings.TrimSpace(pin.Title)
		if desc := strings.TrimSpace(pin.Description); desc != "" {
			if line != "" {
				line += ": "
			}
			line += desc
		}
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}
	summary := strings.TrimSpace(b.String())
	runes := []rune(summary)
	if len(runes) > MaxPinterestContextLength {
		summary = string(runes[:MaxPinterestContextLength])
	}
	return summary
}

package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"routeopt/internal/model"
	"routeopt/internal/opt"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(timeWindowValidation, opt.TimeWindow{})
	return v
}

func timeWindowValidation(sl validator.StructLevel) {
	tw := sl.Current().Interface().(opt.TimeWindow)
	if !tw.EarliestArrival.IsZero() && !tw.LatestDeparture.IsZero() && tw.LatestDeparture.Before(tw.EarliestArrival) {
		sl.ReportError(tw.LatestDeparture, "LatestDeparture", "latestDeparture", "gtefield", "EarliestArrival")
	}
}

// validateOptimizeRequest returns one message per problem found in req.
func (s *Server) validateOptimizeRequest(req *model.OptimizeRequest) []string {
	var msgs []string
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []string{err.Error()}
		}
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
	}
	if a := req.Options.Algorithm; a != "" && !opt.Known(a) {
		msgs = append(msgs, fmt.Sprintf("options.algorithm: unknown algorithm %q", a))
	}
	seen := make(map[string]bool, len(req.Locations))
	for _, l := range req.Locations {
		if l.ID == "" {
			continue
		}
		if seen[l.ID] {
			msgs = append(msgs, fmt.Sprintf("locations: duplicate id %q", l.ID))
		}
		seen[l.ID] = true
	}
	if n := len(req.Locations); n > s.maxLocations {
		msgs = append(msgs, fmt.Sprintf("locations: %d exceeds the limit of %d", n, s.maxLocations))
	}
	return msgs
}

func describe(fe validator.FieldError) string {
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

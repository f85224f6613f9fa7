package extractor

import (
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/TourSync/internal/models"
)

// lookup walks a dotted path through nested maps. Any miss returns nil.
func lookup(m map[string]any, path string) any {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = mm[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func firstString(m map[string]any, paths ...string) *string {
	for _, p := range paths {
		switch v := lookup(m, p).(type) {
		case string:
			if v == "" {
				continue
			}
			return &v
		case float64:
			s := strconv.FormatFloat(v, 'f', -1, 64)
			return &s
		}
	}
	return nil
}

func firstFloat(m map[string]any, paths ...string) *float64 {
	for _, p := range paths {
		v := lookup(m, p)
		if v == nil {
			continue
		}
		if f, err := models.AsFloat(v); err == nil && f != nil {
			return f
		}
	}
	return nil
}

func firstTime(m map[string]any, paths ...string) *time.Time {
	for _, p := range paths {
		v := lookup(m, p)
		if v == nil {
			continue
		}
		if t, err := models.AsTime(v); err == nil && t != nil {
			return t
		}
	}
	return nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

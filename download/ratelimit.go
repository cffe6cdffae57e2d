package download

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

const defaultRateLimitWaitSeconds = 300

var rateLimitPhrases = []string{
	"rate limit",
	"rate-limit",
	"ratelimit",
	"rate limited",
	"too many requests",
	"http error 429",
	"try again later",
}

var (
	hourCountPattern   = regexp.MustCompile(`(\d+)\s*(?:hours?|hrs?)\b`)
	minuteCountPattern = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?)\b`)
)

// ClassifyRateLimit sniffs a failure message for upstream throttling and the
// wait it suggests. An explicit hour or minute count wins; otherwise the unit
// mentioned picks the default.
func ClassifyRateLimit(msg string) model.RateLimitSignal {
	lower := strings.ToLower(msg)

	limited := false
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			limited = true
			break
		}
	}
	if !limited {
		return model.RateLimitSignal{}
	}

	if m := hourCountPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return model.RateLimitSignal{IsLimited: true, SuggestedWaitSeconds: n * 3600}
		}
	}
	if m := minuteCountPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return model.RateLimitSignal{IsLimited: true, SuggestedWaitSeconds: n * 60}
		}
	}

	switch {
	case strings.Contains(lower, "hour"):
		return model.RateLimitSignal{IsLimited: true, SuggestedWaitSeconds: 3600}
	case strings.Contains(lower, "minute"):
		return model.RateLimitSignal{IsLimited: true, SuggestedWaitSeconds: 300}
	}
	return model.RateLimitSignal{IsLimited: true, SuggestedWaitSeconds: defaultRateLimitWaitSeconds}
}

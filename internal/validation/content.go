package validation

import (
	"fmt"
	"regexp"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/validation/constraint"
)

var hashtagPattern = regexp.MustCompile(`^#[A-Za-z0-9_]{1,30}$`)

// ContentPackage validates a generated content package.
func (v *Validator) ContentPackage(c domain.ContentPackage) Result {
	var s constraint.Set
	contentFields(&s, c)
	if s.Len() == 0 {
		contentCross(&s, c)
	}
	return result(&s)
}

func contentFields(s *constraint.Set, c domain.ContentPackage) {
	s.Add(constraint.IsUUID("contentId", c.ContentID))
	s.Add(constraint.IsUUID("taskId", c.TaskID))
	s.Add(constraint.IsUUID("trendRef", c.TrendRef))
	s.Add(constraint.LengthBetween("script", c.Script, 50, 5000))

	s.Add(constraint.CountBetween("mediaUrls", len(c.MediaURLs), 1, 10))
	for i, u := range c.MediaURLs {
		s.Add(constraint.IsURI(index("mediaUrls", i), u))
	}

	s.Add(constraint.LengthBetween("captions", c.Captions, 20, 2000))

	s.Add(constraint.CountBetween("hashtags", len(c.Hashtags), 3, 30))
	for i, h := range c.Hashtags {
		s.Add(constraint.Pattern(index("hashtags", i), h, hashtagPattern))
	}

	s.Add(constraint.Range("confidenceScore", c.ConfidenceScore, 0, 1))

	for i, m := range c.MediaMetadata {
		p := index("mediaMetadata", i)
		s.Add(constraint.IsURI(join(p, "url"), m.URL))
		s.Add(constraint.EnumOf(join(p, "type"), m.Type, domain.MediaTypes))
		s.Add(constraint.Range(join(p, "duration_sec"), m.DurationSec, 0, 600))
		s.Add(constraint.AtLeast(join(p, "size_bytes"), m.SizeBytes, 0))
		if m.GeneratedBy != "" {
			s.Add(constraint.EnumOf(join(p, "generated_by"), m.GeneratedBy, domain.Generators))
		}
	}

	if g := c.GenerationMetadata; g != nil {
		s.Add(constraint.EnumOf("generationMetadata.persona", g.Persona, domain.Personas))
		s.Add(constraint.AtLeast("generationMetadata.generation_time_ms", g.GenerationTimeMs, 0))
	}

	if pv := c.PlatformVariants; pv != nil {
		if tw := pv.Twitter; tw != nil {
			s.Add(constraint.LengthBetween("platformVariants.twitter.text", tw.Text, 0, 280))
			s.Add(constraint.CountBetween("platformVariants.twitter.media_ids", len(tw.MediaIDs), 0, 4))
		}
		if tt := pv.TikTok; tt != nil {
			s.Add(constraint.LengthBetween("platformVariants.tiktok.description", tt.Description, 0, 2200))
			if tt.VideoURL != "" {
				s.Add(constraint.IsURI("platformVariants.tiktok.video_url", tt.VideoURL))
			}
		}
		if ig := pv.Instagram; ig != nil {
			s.Add(constraint.LengthBetween("platformVariants.instagram.caption", ig.Caption, 0, 2200))
			s.Add(constraint.CountBetween("platformVariants.instagram.carousel_items", len(ig.CarouselItems), 0, 10))
		}
	}
}

// contentCross checks the whitelist of variant keys and the confidence/review coupling.
func contentCross(s *constraint.Set, c domain.ContentPackage) {
	if pv := c.PlatformVariants; pv != nil {
		for _, key := range pv.Unknown {
			s.Add(&constraint.Violation{
				Field:      "platformVariants." + key,
				Constraint: ConstraintAllowedKeys,
				Expected:   "twitter|tiktok|instagram with their declared fields",
				Actual:     fmt.Sprintf("unexpected key %q", key),
			})
		}
	}

	// One-directional: high confidence may still ask for review.
	if c.ConfidenceScore < domain.ReviewConfidenceThreshold && !c.RequiresReview {
		s.Add(&constraint.Violation{
			Field:      "requiresReview",
			Constraint: ConstraintConfidenceReview,
			Expected:   fmt.Sprintf("true when confidenceScore < %.1f", domain.ReviewConfidenceThreshold),
			Actual:     fmt.Sprintf("false with confidenceScore %v", c.ConfidenceScore),
		})
	}
}

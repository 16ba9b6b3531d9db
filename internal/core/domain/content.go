package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ReviewConfidenceThreshold is the confidence below which human review is mandatory.
const ReviewConfidenceThreshold = 0.8

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

var MediaTypes = []MediaType{MediaTypeImage, MediaTypeVideo}

type Generator string

const (
	GeneratorIdeogram Generator = "ideogram"
	GeneratorRunwayML Generator = "runwayml"
)

var Generators = []Generator{GeneratorIdeogram, GeneratorRunwayML}

type Persona string

const (
	PersonaStrict       Persona = "strict"
	PersonaFlexible     Persona = "flexible"
	PersonaExperimental Persona = "experimental"
)

var Personas = []Persona{PersonaStrict, PersonaFlexible, PersonaExperimental}

// ContentPackage is publishable content generated from one TrendData reference.
type ContentPackage struct {
	ContentID          string              `json:"contentId"`
	TaskID             string              `json:"taskId"`
	TrendRef           string              `json:"trendRef"`
	Script             string              `json:"script"`
	MediaURLs          []string            `json:"mediaUrls"`
	Captions           string              `json:"captions"`
	Hashtags           []string            `json:"hashtags"`
	ConfidenceScore    float64             `json:"confidenceScore"`
	RequiresReview     bool                `json:"requiresReview"`
	MediaMetadata      []MediaItem         `json:"mediaMetadata,omitempty"`
	GenerationMetadata *GenerationMetadata `json:"generationMetadata,omitempty"`
	PlatformVariants   *PlatformVariants   `json:"platformVariants,omitempty"`
}

type MediaItem struct {
	URL         string    `json:"url"`
	Type        MediaType `json:"type"`
	DurationSec float64   `json:"duration_sec"`
	SizeBytes   int64     `json:"size_bytes"`
	GeneratedBy Generator `json:"generated_by"`
}

type GenerationMetadata struct {
	GeneratorAgent     string  `json:"generator_agent,omitempty"`
	Model              string  `json:"model,omitempty"`
	Persona            Persona `json:"persona"`
	SafetyChecksPassed bool    `json:"safety_checks_passed"`
	GenerationTimeMs   int64   `json:"generation_time_ms"`
}

type TwitterVariant struct {
	Text     string   `json:"text"`
	MediaIDs []string `json:"media_ids,omitempty"`
}

type TikTokVariant struct {
	VideoURL    string `json:"video_url,omitempty"`
	Description string `json:"description"`
	SoundID     string `json:"sound_id,omitempty"`
}

type InstagramVariant struct {
	Caption       string   `json:"caption"`
	CarouselItems []string `json:"carousel_items,omitempty"`
}

// PlatformVariants holds per-platform renditions. Only twitter, tiktok and
// instagram are permitted; anything else seen while decoding lands in Unknown
// so validation can reject it instead of passing it through.
type PlatformVariants struct {
	Twitter   *TwitterVariant
	TikTok    *TikTokVariant
	Instagram *InstagramVariant

	// Unknown holds dotted paths of keys outside the whitelist, e.g.
	// "facebook" or "twitter.poll".
	Unknown []string
}

// UnmarshalJSON decodes the variant map and records unknown keys.
func (p *PlatformVariants) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = PlatformVariants{}
	for key, msg := range raw {
		var err error
		switch key {
		case "twitter":
			p.Twitter = &TwitterVariant{}
			err = p.decodeStrict(key, msg, p.Twitter)
		case "tiktok":
			p.TikTok = &TikTokVariant{}
			err = p.decodeStrict(key, msg, p.TikTok)
		case "instagram":
			p.Instagram = &InstagramVariant{}
			err = p.decodeStrict(key, msg, p.Instagram)
		default:
			p.Unknown = append(p.Unknown, key)
		}
		if err != nil {
			return err
		}
	}
	sort.Strings(p.Unknown)
	return nil
}

// decodeStrict decodes a variant, collecting unknown fields into p.Unknown.
func (p *PlatformVariants) decodeStrict(key string, msg json.RawMessage, dst any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return fmt.Errorf("failed to decode %s variant: %w", key, err)
	}
	known := knownVariantFields[key]
	for name := range fields {
		if !known[name] {
			p.Unknown = append(p.Unknown, key+"."+name)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(msg))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s variant: %w", key, err)
	}
	return nil
}

var knownVariantFields = map[string]map[string]bool{
	"twitter":   {"text": true, "media_ids": true},
	"tiktok":    {"video_url": true, "description": true, "sound_id": true},
	"instagram": {"caption": true, "carousel_items": true},
}

// MarshalJSON emits only the whitelisted variants.
func (p PlatformVariants) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3)
	if p.Twitter != nil {
		out["twitter"] = p.Twitter
	}
	if p.TikTok != nil {
		out["tiktok"] = p.TikTok
	}
	if p.Instagram != nil {
		out["instagram"] = p.Instagram
	}
	return json.Marshal(out)
}

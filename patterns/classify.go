package patterns

import (
	"strings"
)

// DefaultType is assigned when no classification rule matches
const DefaultType = "other"

// DefaultMethod is the match method recorded for the default type
const DefaultMethod = "default"

// SubtypeRule names a subtype and the keywords that select it
type SubtypeRule struct {
	Slug     string
	Keywords []string
}

// ClassRule maps keywords to an activity type. Keywords are matched against
// folded tokens; a trailing "*" matches a prefix ("swim*" hits "swimmers")
// and a keyword with spaces must appear as consecutive tokens.
type ClassRule struct {
	ID       string
	Type     string
	Keywords []string
	Subtypes []SubtypeRule
}

// Matches reports whether any keyword appears in tokens
func (r ClassRule) Matches(tokens []string) bool {
	return matchAny(tokens, r.Keywords)
}

// Subtype derives the subtype from tokens; first matching subtype wins
func (r ClassRule) Subtype(tokens []string) *string {
	for _, st := range r.Subtypes {
		if matchAny(tokens, st.Keywords) {
			slug := st.Slug
			return &slug
		}
	}
	return nil
}

func sub(slug string, keywords ...string) SubtypeRule {
	return SubtypeRule{Slug: slug, Keywords: keywords}
}

// ClassRules is the ordered classification table. Order matters: racquet
// sports sit ahead of swimming so "Swim Squash" is a squash program.
var ClassRules = []ClassRule{
	{
		ID:       "racquet-sports",
		Type:     "racquet-sports",
		Keywords: []string{"squash", "tennis", "badminton", "pickleball", "racquetball", "ping pong", "racquet*", "racket*"},
		Subtypes: []SubtypeRule{
			sub("table-tennis", "table tennis", "ping pong"),
			sub("squash", "squash"),
			sub("tennis", "tennis"),
			sub("badminton", "badminton"),
			sub("pickleball", "pickleball"),
			sub("racquetball", "racquetball"),
		},
	},
	{
		ID:       "swimming",
		Type:     "swimming",
		Keywords: []string{"swim*", "aquatic*", "aquafit", "aqua fit", "lifeguard*", "bronze medallion", "bronze cross", "diving", "dive", "water polo", "snorkel*"},
		Subtypes: []SubtypeRule{
			sub("aquafit", "aquafit", "aqua fit"),
			sub("lifeguarding", "lifeguard*", "bronze medallion", "bronze cross", "nls"),
			sub("diving", "diving", "dive"),
			sub("water-polo", "water polo"),
			sub("lessons", "lesson*", "swim kids", "learn to swim", "preschool", "swimmer", "level*", "stroke*"),
		},
	},
	{
		ID:       "skating",
		Type:     "skating",
		Keywords: []string{"skat*", "figure skating", "learn to skate"},
		Subtypes: []SubtypeRule{
			sub("figure-skating", "figure"),
			sub("power-skating", "power"),
			sub("lessons", "lesson*", "learn to skate", "level*"),
		},
	},
	{
		ID:       "team-sports",
		Type:     "team-sports",
		Keywords: []string{"soccer", "futsal", "basketball", "volleyball", "hockey", "baseball", "softball", "t ball", "tball", "football", "lacrosse", "rugby", "cricket", "ultimate", "floorball", "dodgeball", "multisport*", "multi sport*"},
		Subtypes: []SubtypeRule{
			sub("soccer", "soccer", "futsal"),
			sub("basketball", "basketball"),
			sub("volleyball", "volleyball"),
			sub("hockey", "hockey", "floorball"),
			sub("baseball", "baseball", "softball", "t ball", "tball"),
			sub("football", "football"),
			sub("multisport", "multisport*", "multi sport*"),
		},
	},
	{
		ID:       "martial-arts",
		Type:     "martial-arts",
		Keywords: []string{"martial arts", "karate", "kung fu", "taekwondo", "tae kwon do", "judo", "jiu jitsu", "jiujitsu", "aikido", "kickbox*", "boxing", "self defence", "self defense"},
		Subtypes: []SubtypeRule{
			sub("karate", "karate"),
			sub("taekwondo", "taekwondo", "tae kwon do"),
			sub("judo", "judo"),
			sub("jiu-jitsu", "jiu jitsu", "jiujitsu"),
			sub("kung-fu", "kung fu"),
			sub("boxing", "boxing", "kickbox*"),
			sub("self-defence", "self defence", "self defense"),
		},
	},
	{
		ID:       "dance",
		Type:     "dance",
		Keywords: []string{"danc*", "ballet", "hip hop", "hiphop", "jazz", "tap", "ballroom", "salsa", "breakdanc*", "contemporary", "lyrical"},
		Subtypes: []SubtypeRule{
			sub("ballet", "ballet"),
			sub("hip-hop", "hip hop", "hiphop", "breakdanc*"),
			sub("jazz", "jazz"),
			sub("tap", "tap"),
			sub("ballroom", "ballroom", "salsa"),
			sub("contemporary", "contemporary", "lyrical"),
		},
	},
	{
		ID:       "gymnastics",
		Type:     "gymnastics",
		Keywords: []string{"gymnast*", "gym tots", "tumbl*", "trampoline*", "parkour", "acro*", "cheer*"},
		Subtypes: []SubtypeRule{
			sub("trampoline", "trampoline*"),
			sub("parkour", "parkour"),
			sub("acrobatics", "acro*", "tumbl*"),
			sub("cheer", "cheer*"),
		},
	},
	{
		ID:       "music",
		Type:     "music",
		Keywords: []string{"music*", "piano", "guitar*", "violin", "drum*", "ukulele", "singing", "sing", "choir", "vocal*", "band"},
		Subtypes: []SubtypeRule{
			sub("piano", "piano"),
			sub("guitar", "guitar*", "ukulele"),
			sub("strings", "violin"),
			sub("drums", "drum*"),
			sub("voice", "singing", "sing", "choir", "vocal*"),
		},
	},
	{
		ID:       "arts-crafts",
		Type:     "arts-crafts",
		Keywords: []string{"art", "arts", "artist*", "paint*", "draw*", "pottery", "ceramic*", "clay", "craft*", "sculpt*", "sketch*", "cartoon*", "comic*", "watercolo*", "sewing", "knit*"},
		Subtypes: []SubtypeRule{
			sub("painting", "paint*", "watercolo*"),
			sub("drawing", "draw*", "sketch*", "cartoon*", "comic*"),
			sub("pottery", "pottery", "ceramic*", "clay", "wheel"),
			sub("textiles", "sewing", "knit*"),
			sub("crafts", "craft*"),
		},
	},
	{
		ID:       "stem",
		Type:     "stem",
		Keywords: []string{"stem", "steam", "science*", "scientist*", "coding", "code", "coders", "programming", "robot*", "lego", "engineer*", "math*", "minecraft", "tech*", "electronics"},
		Subtypes: []SubtypeRule{
			sub("coding", "coding", "code", "coders", "programming", "minecraft"),
			sub("robotics", "robot*"),
			sub("engineering", "lego", "engineer*"),
			sub("science", "science*", "scientist*"),
			sub("math", "math*"),
		},
	},
	{
		ID:       "fitness",
		Type:     "fitness",
		Keywords: []string{"fitness", "yoga", "pilates", "zumba", "boot camp", "bootcamp", "strength", "cardio", "spin", "spinning", "cycle", "barre", "tai chi", "qigong", "stretch*", "hiit", "conditioning", "weight*", "workout*", "walking"},
		Subtypes: []SubtypeRule{
			sub("yoga", "yoga"),
			sub("pilates", "pilates", "barre"),
			sub("dance-fitness", "zumba"),
			sub("strength", "strength", "weight*", "conditioning", "boot camp", "bootcamp", "hiit"),
			sub("cycling", "spin", "spinning", "cycle"),
			sub("mind-body", "tai chi", "qigong", "stretch*"),
		},
	},
	{
		ID:       "camps",
		Type:     "camps",
		Keywords: []string{"camp", "camps", "day camp", "pro d", "pro d day"},
		Subtypes: []SubtypeRule{
			sub("spring-break", "spring break", "spring"),
			sub("summer", "summer"),
			sub("winter-break", "winter break", "winter", "holiday*"),
			sub("pro-d-day", "pro d", "pro d day", "professional development"),
		},
	},
	{
		ID:       "early-years",
		Type:     "early-years",
		Keywords: []string{"preschool*", "toddler*", "tot", "tots", "baby", "babies", "infant*", "playgroup*", "play group", "playtime", "play time", "parent and tot"},
		Subtypes: []SubtypeRule{
			sub("parent-and-child", "parent", "parents", "caregiver*"),
			sub("preschool", "preschool*"),
			sub("play", "playgroup*", "play group", "playtime", "play time"),
		},
	},
	{
		ID:       "cooking",
		Type:     "cooking",
		Keywords: []string{"cook*", "baking", "bake*", "culinary", "chef*", "kitchen"},
		Subtypes: []SubtypeRule{
			sub("baking", "baking", "bake*"),
		},
	},
	{
		ID:       "outdoor",
		Type:     "outdoor",
		Keywords: []string{"outdoor*", "hik*", "nature", "climb*", "kayak*", "canoe*", "paddl*", "bouldering", "orienteering", "fishing", "garden*"},
		Subtypes: []SubtypeRule{
			sub("climbing", "climb*", "bouldering"),
			sub("paddling", "kayak*", "canoe*", "paddl*"),
			sub("hiking", "hik*", "orienteering"),
		},
	},
	{
		ID:       "language",
		Type:     "language",
		Keywords: []string{"language*", "french", "spanish", "mandarin", "cantonese", "japanese", "esl", "english", "conversation"},
		Subtypes: []SubtypeRule{
			sub("french", "french"),
			sub("spanish", "spanish"),
			sub("chinese", "mandarin", "cantonese"),
			sub("english", "esl", "english"),
		},
	},
}

// Classify runs text through ClassRules and returns the first matching rule
func Classify(text string) (ClassRule, []string, bool) {
	tokens := Tokens(text)
	for _, rule := range ClassRules {
		if rule.Matches(tokens) {
			return rule, tokens, true
		}
	}
	return ClassRule{}, tokens, false
}

func matchAny(tokens []string, keywords []string) bool {
	for _, kw := range keywords {
		if matchKeyword(tokens, kw) {
			return true
		}
	}
	return false
}

func matchKeyword(tokens []string, kw string) bool {
	parts := strings.Fields(kw)
	if len(parts) == 0 {
		return false
	}
	for i := 0; i+len(parts) <= len(tokens); i++ {
		ok := true
		for j, p := range parts {
			if !matchToken(tokens[i+j], p) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func matchToken(tok, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(tok, prefix)
	}
	return tok == pattern
}

// parentPhrases mark programs where a caregiver takes part
var parentPhrases = []string{
	"parent participation", "parent and tot", "parent and child", "parent and baby",
	"parent and me", "parent tot", "parent child", "with parent", "with caregiver",
	"caregiver and", "and caregiver", "mom and", "dad and", "grown up and me",
}

// RequiresParent reports whether a name describes a parent-participation program
func RequiresParent(name string) bool {
	joined := " " + strings.Join(Tokens(name), " ") + " "
	for _, p := range parentPhrases {
		if strings.Contains(joined, " "+p+" ") {
			return true
		}
	}
	return false
}

// AgeCategoryRule assigns an age category from an age range
type AgeCategoryRule struct {
	ID       string
	Category string
	Match    func(lo, hi *int, requiresParent bool) bool
}

func le(v *int, n int) bool { return v != nil && *v <= n }
func ge(v *int, n int) bool { return v != nil && *v >= n }

// AgeCategoryRules in priority order; the last entry always matches
var AgeCategoryRules = []AgeCategoryRule{
	{ID: "parent-infant", Category: "baby-parent", Match: func(lo, hi *int, parent bool) bool {
		return parent && (lo != nil || hi != nil) && (hi == nil || *hi <= 2) && (lo == nil || *lo <= 1)
	}},
	{ID: "no-ages", Category: "all-ages", Match: func(lo, hi *int, _ bool) bool {
		return lo == nil && hi == nil
	}},
	{ID: "adult", Category: "adult", Match: func(lo, hi *int, _ bool) bool {
		return ge(lo, 18) || (ge(lo, 16) && hi == nil)
	}},
	{ID: "teen", Category: "teen", Match: func(lo, hi *int, _ bool) bool {
		return ge(lo, 12) && (hi == nil || *hi <= 19)
	}},
	{ID: "preschool", Category: "preschool", Match: func(lo, hi *int, _ bool) bool {
		return le(hi, 5)
	}},
	{ID: "school-age", Category: "school-age", Match: func(lo, hi *int, _ bool) bool {
		return (lo == nil || *lo >= 4) && le(hi, 13)
	}},
	{ID: "school-age-open", Category: "school-age", Match: func(lo, hi *int, _ bool) bool {
		return ge(lo, 5) && hi == nil
	}},
	{ID: "youth", Category: "school-age", Match: func(lo, hi *int, _ bool) bool {
		return ge(lo, 5) && le(hi, 18)
	}},
	{ID: "mixed", Category: "all-ages", Match: func(*int, *int, bool) bool { return true }},
}

// AgeCategory returns the category of the first matching AgeCategoryRule
func AgeCategory(lo, hi *int, requiresParent bool) string {
	for _, r := range AgeCategoryRules {
		if r.Match(lo, hi, requiresParent) {
			return r.Category
		}
	}
	return "all-ages"
}
